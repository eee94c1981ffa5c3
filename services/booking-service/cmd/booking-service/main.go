package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/pawwalk/libs/db"
	"github.com/md-rashed-zaman/pawwalk/libs/httpx"
	"github.com/md-rashed-zaman/pawwalk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/pawwalk/libs/otel"
	"github.com/md-rashed-zaman/pawwalk/libs/runtime"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/projection"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/service"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/storage/memory"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store    service.Store
		walkers  projection.WalkerWriter
		recorder inbox.Recorder
		checks   []runtime.ReadyCheck
	)
	switch cfg.StoreDriver {
	case storeMemory:
		mem := memory.New()
		store, walkers, recorder = mem, mem, inbox.NewMemory()
		logger.Warn("using in-memory store; bookings are lost on restart and events are not published")
		if cfg.SeedWalkers != "" {
			n, err := projection.Seed(ctx, mem, []byte(cfg.SeedWalkers))
			if err != nil {
				logger.Error("walker seed failed", "err", err)
				panic(err)
			}
			logger.Info("walkers seeded", "count", n)
		}
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		pgStore := storage.NewStore(pool, outboxRepo)
		if cfg.AutoMigrate {
			if err := pgStore.Migrate(ctx); err != nil {
				logger.Error("db migration failed", "err", err)
				panic(err)
			}
		}
		store, walkers, recorder = pgStore, pgStore, inbox.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		sink, err := newSink(cfg)
		if err != nil {
			logger.Error("event transport init failed; outbox events stay queued", "transport", cfg.EventTransport, "err", err)
		}
		publisher := outbox.NewPublisher(pool, outboxRepo, sink, logger, outbox.PublisherConfig{
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go publisher.Run(ctx)
	}

	if brokers := kafkax.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 && cfg.WalkerTopic != "" {
		walkerProjection := projection.NewWalkerProjection(walkers, logger)
		walkerConsumer := consumer.New(logger, recorder, consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.WalkerTopic,
		}, func(ctx context.Context, msg kafka.Message) error {
			return walkerProjection.Apply(ctx, msg.Value)
		})
		go walkerConsumer.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	} else {
		logger.Warn("walker profile consumer disabled (no kafka brokers configured)")
	}

	limiter := httpx.Limiter(httpx.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow))
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, cfg.ServiceName)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	bookingService := service.NewBookingService(store, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	api := httpx.Chain(bookingHandler.Routes(),
		httpx.WithRateLimit(limiter, logger, cfg.RateLimitFailOpen),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := newGRPCHealth(logger)
	go grpcSrv.serve(":"+cfg.GRPCPort, cfg.ServiceName)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcSrv.stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newSink returns nil for EVENT_TRANSPORT=none, which leaves events queued in the outbox.
func newSink(cfg Config) (outbox.Sink, error) {
	switch cfg.EventTransport {
	case transportKafka:
		sink, err := outbox.NewKafkaSink(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case transportRabbitMQ:
		sink, err := outbox.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, nil
	}
}
