package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/pawwalk/libs/kafkax"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader     *kafka.Reader
	logger     *slog.Logger
	inbox      inbox.Recorder
	handler    Handler
	retryDelay time.Duration
}

type Config struct {
	Brokers    string
	GroupID    string
	Topic      string
	RetryDelay time.Duration
}

func New(logger *slog.Logger, recorder inbox.Recorder, cfg Config, handler Handler) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      recorder,
		handler:    handler,
		retryDelay: retryDelay,
	}
}

// Run fetches messages and commits each offset only after the message has been
// applied, so nothing is skipped when the handler fails.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		if !c.deliver(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit error", "err", err, "offset", msg.Offset)
		}
	}
}

// deliver retries msg until it is applied or ctx is done. It reports false
// only when ctx ended first.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) bool {
	for {
		err := c.process(ctx, msg)
		if err == nil {
			return true
		}
		c.logger.Error("event processing failed, retrying", "err", err, "topic", msg.Topic, "offset", msg.Offset, "retry_in", c.retryDelay)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}
}

// process applies msg at most once per event id. A handler error leaves the
// event unrecorded and is returned for retry.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)

	applied, err := c.inbox.Once(ctxSpan, meta.EventID, meta.EventType, func(ctx context.Context) error {
		return c.handler(ctx, msg)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !applied {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
	}
	return nil
}
