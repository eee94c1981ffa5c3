package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/inbox"
	"github.com/segmentio/kafka-go"
)

func newTestConsumer(recorder inbox.Recorder, handler Handler) *Consumer {
	return &Consumer{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:      recorder,
		handler:    handler,
		retryDelay: time.Millisecond,
	}
}

func walkerMessage(eventID string) kafka.Message {
	return kafka.Message{
		Topic:   "walker.profile.updated.v1",
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(eventID)}},
	}
}

func TestProcess_SkipsDuplicates(t *testing.T) {
	calls := 0
	c := newTestConsumer(inbox.NewMemory(), func(context.Context, kafka.Message) error {
		calls++
		return nil
	})
	msg := walkerMessage("evt-1")

	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("process duplicate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler once, got %d", calls)
	}

	if err := c.process(context.Background(), walkerMessage("evt-2")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected handler for new event, got %d", calls)
	}
}

func TestProcess_HandlerFailureIsRetriedOnRedelivery(t *testing.T) {
	calls := 0
	applied := false
	c := newTestConsumer(inbox.NewMemory(), func(context.Context, kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("store unavailable")
		}
		applied = true
		return nil
	})
	msg := walkerMessage("evt-1")

	if err := c.process(context.Background(), msg); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if err := c.process(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if calls != 2 || !applied {
		t.Fatalf("expected redelivery to apply, calls=%d applied=%v", calls, applied)
	}
}

func TestDeliver_RetriesUntilApplied(t *testing.T) {
	calls := 0
	c := newTestConsumer(inbox.NewMemory(), func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})
	if !c.deliver(context.Background(), walkerMessage("evt-1")) {
		t.Fatal("expected delivery to succeed")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDeliver_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestConsumer(inbox.NewMemory(), func(context.Context, kafka.Message) error {
		cancel()
		return errors.New("store unavailable")
	})
	if c.deliver(ctx, walkerMessage("evt-1")) {
		t.Fatal("expected delivery to stop when the context ends")
	}
}

type failingInbox struct{}

func (failingInbox) Once(context.Context, string, string, func(context.Context) error) (bool, error) {
	return false, errors.New("db down")
}

func TestProcess_InboxFailureSkipsHandler(t *testing.T) {
	called := false
	c := newTestConsumer(failingInbox{}, func(context.Context, kafka.Message) error {
		called = true
		return nil
	})
	if err := c.process(context.Background(), kafka.Message{Key: []byte("evt-1")}); err == nil {
		t.Fatal("expected inbox error")
	}
	if called {
		t.Fatal("handler must not run when the inbox fails")
	}
}
