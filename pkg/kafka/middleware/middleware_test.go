package kafka_middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"courtbook/pkg/kafka"
	"courtbook/pkg/logger"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	var m Metrics
	produce := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("boom") }

	_ = produce(context.Background(), kafka.Message{}, ok)
	_ = produce(context.Background(), kafka.Message{}, ok)
	_ = produce(context.Background(), kafka.Message{}, fail)
	_ = consume(context.Background(), kafka.Message{}, fail)

	s := m.Snapshot()
	if s.Published != 2 || s.PublishFailed != 1 {
		t.Errorf("publish counters = %d/%d, want 2/1", s.Published, s.PublishFailed)
	}
	if s.Consumed != 0 || s.ConsumeFailed != 1 {
		t.Errorf("consume counters = %d/%d, want 0/1", s.Consumed, s.ConsumeFailed)
	}
	if len(s.LogAttrs()) != 12 {
		t.Errorf("LogAttrs() has %d entries, want 12", len(s.LogAttrs()))
	}
}

func TestLoggingMiddleware_PassesErrorThrough(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf, Level: logger.DEBUG})

	want := errors.New("broker gone")
	err := LoggingProducerMiddleware(log)(context.Background(), kafka.Message{Topic: "booking-events"},
		func(ctx context.Context, msg kafka.Message) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
	if !strings.Contains(buf.String(), "Failed to publish kafka message") {
		t.Errorf("missing failure log: %s", buf.String())
	}

	buf.Reset()
	err = LoggingConsumerMiddleware(log)(context.Background(), kafka.Message{Topic: "booking-events"},
		func(ctx context.Context, msg kafka.Message) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Processed kafka message") {
		t.Errorf("missing debug log: %s", buf.String())
	}
}
