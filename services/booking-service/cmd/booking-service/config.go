package main

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/pawwalk/libs/config"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"

	transportKafka    = "kafka"
	transportRabbitMQ = "rabbitmq"
	transportNone     = "none"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"booking-service"`
	Port        string `envconfig:"PORT" default:"8083"`
	GRPCPort    string `envconfig:"GRPC_PORT" default:"9093"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	// SeedWalkers is a JSON list of walker profiles loaded at startup in memory mode.
	SeedWalkers string `envconfig:"SEED_WALKERS"`

	EventTransport  string        `envconfig:"EVENT_TRANSPORT" default:"kafka"`
	KafkaBrokers    string        `envconfig:"KAFKA_BROKERS"`
	KafkaGroupID    string        `envconfig:"KAFKA_GROUP_ID" default:"booking-service"`
	WalkerTopic     string        `envconfig:"KAFKA_WALKER_TOPIC" default:"walker.profile.updated.v1"`
	AMQPURL         string        `envconfig:"AMQP_URL"`
	AMQPExchange    string        `envconfig:"AMQP_EXCHANGE" default:"pawwalk.events"`
	OutboxPollEvery time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	OutboxBatchSize int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`

	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	RateLimit         int           `envconfig:"RATE_LIMIT" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitFailOpen bool          `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"true"`
	BodyLimitBytes    int64         `envconfig:"HTTP_BODY_LIMIT_BYTES" default:"1048576"`
	RequestTimeout    time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"10s"`

	OTelEnabled     bool    `envconfig:"OTEL_ENABLED" default:"true"`
	OTLPEndpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"jaeger:4317"`
	OTelSampleRatio float64 `envconfig:"OTEL_SAMPLING_RATIO" default:"1"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if err := config.Port("PORT", c.Port); err != nil {
		return err
	}
	if err := config.Port("GRPC_PORT", c.GRPCPort); err != nil {
		return err
	}
	if err := config.OneOf("STORE_DRIVER", c.StoreDriver, storePostgres, storeMemory); err != nil {
		return err
	}
	if err := config.OneOf("EVENT_TRANSPORT", c.EventTransport, transportKafka, transportRabbitMQ, transportNone); err != nil {
		return err
	}
	if c.StoreDriver == storePostgres && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
	}
	if c.SeedWalkers != "" && c.StoreDriver != storeMemory {
		return errors.New("SEED_WALKERS is only supported with STORE_DRIVER=memory")
	}
	if c.EventTransport == transportRabbitMQ && c.AMQPURL == "" {
		return errors.New("AMQP_URL is required when EVENT_TRANSPORT=rabbitmq")
	}
	if c.RateLimit <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}
