package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMeta(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{
		Topic:   "walker.profile.updated.v1",
		Headers: []kafka.Header{{Key: "event_id", Value: []byte("evt-1")}},
	})
	if meta.EventID != "evt-1" || meta.EventType != "walker.profile.updated.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}

	meta = ExtractEventMeta(kafka.Message{Topic: "t", Key: []byte("k-1")})
	if meta.EventID != "k-1" {
		t.Fatalf("expected key fallback, got %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if len(SplitBrokers("")) != 0 {
		t.Fatal("expected no brokers")
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("evt-1")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %v", headers)
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("expected trace id %s, got %s", sc.TraceID(), got.TraceID())
	}
}
