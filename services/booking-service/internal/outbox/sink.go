package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/pawwalk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/pawwalk/libs/otel"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

// Sink delivers outbox records to a broker. Publish must return only after the
// broker has accepted the record.
type Sink interface {
	Publish(ctx context.Context, r Record) error
	Close() error
}

type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers string) (*KafkaSink, error) {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	return &KafkaSink{writer: kafka.NewWriter(kafka.WriterConfig{
		Brokers:  list,
		Balancer: &kafka.Hash{},
	})}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, r Record) error {
	return s.writer.WriteMessages(ctx, kafkaMessage(ctx, r))
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// kafkaMessage keys by aggregate id so every event of one booking lands on the
// same partition, in order.
func kafkaMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic: r.EventType,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.EventID)},
			{Key: "event_type", Value: []byte(r.EventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}

type AMQPSink struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, r Record) error {
	return s.ch.PublishWithContext(ctx, s.exchange, r.EventType, false, false, amqpPublishing(r))
}

func (s *AMQPSink) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func amqpPublishing(r Record) amqp.Publishing {
	headers := amqp.Table{
		"event_id":     r.EventID,
		"event_type":   r.EventType,
		"aggregate_id": r.AggregateID,
	}
	if r.Traceparent != "" {
		headers["traceparent"] = r.Traceparent
	}
	if r.Tracestate != "" {
		headers["tracestate"] = r.Tracestate
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.EventID,
		Type:         r.EventType,
		Timestamp:    r.CreatedAt,
		Headers:      headers,
		Body:         r.Payload,
	}
}
