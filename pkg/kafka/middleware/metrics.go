package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"courtbook/pkg/kafka"
)

// Metrics counts publish and consume outcomes. The zero value is ready to use.
type Metrics struct {
	published       atomic.Int64
	publishFailed   atomic.Int64
	publishDuration atomic.Int64

	consumed        atomic.Int64
	consumeFailed   atomic.Int64
	consumeDuration atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics suitable for logging.
type Snapshot struct {
	Published          int64
	PublishFailed      int64
	AvgPublishDuration time.Duration
	Consumed           int64
	ConsumeFailed      int64
	AvgConsumeDuration time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	published := m.published.Load()
	publishFailed := m.publishFailed.Load()
	consumed := m.consumed.Load()
	consumeFailed := m.consumeFailed.Load()

	return Snapshot{
		Published:          published,
		PublishFailed:      publishFailed,
		AvgPublishDuration: average(m.publishDuration.Load(), published+publishFailed),
		Consumed:           consumed,
		ConsumeFailed:      consumeFailed,
		AvgConsumeDuration: average(m.consumeDuration.Load(), consumed+consumeFailed),
	}
}

// LogAttrs flattens the snapshot into slog key/value pairs.
func (s Snapshot) LogAttrs() []any {
	return []any{
		"published", s.Published,
		"publish_failed", s.PublishFailed,
		"avg_publish_duration", s.AvgPublishDuration,
		"consumed", s.Consumed,
		"consume_failed", s.ConsumeFailed,
		"avg_consume_duration", s.AvgConsumeDuration,
	}
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.publishDuration.Add(int64(time.Since(start)))

		if err != nil {
			m.publishFailed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}

func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.consumeDuration.Add(int64(time.Since(start)))

		if err != nil {
			m.consumeFailed.Add(1)
		} else {
			m.consumed.Add(1)
		}
		return err
	}
}

func average(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(total / count)
}
