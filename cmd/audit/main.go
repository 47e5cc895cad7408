package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"courtbook/internal/events"
	"courtbook/pkg/config"
	"courtbook/pkg/kafka"
	kafka_config "courtbook/pkg/kafka/config"
	kafka_middleware "courtbook/pkg/kafka/middleware"
)

const ServiceName = "booking-audit"

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.EventsEnabled() {
		cfg.Log.Fatal("KAFKA_BROKERS must be set for the audit consumer")
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventsTopic,
		cfg.KafkaConsumerGroup,
		cfg.BookingEventsDLQTopic,
		events.AuditHandler(cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	consumerMetrics := &kafka_middleware.Metrics{}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(consumerMetrics.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Starting booking audit consumer",
		"topic", cfg.BookingEventsTopic,
		"group", cfg.KafkaConsumerGroup,
		"dlq_topic", cfg.BookingEventsDLQTopic,
	)

	runErr := consumer.Start(ctx)
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Booking audit summary", consumerMetrics.Snapshot().LogAttrs()...)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		cfg.Log.Fatal("Audit consumer stopped", "error", runErr)
	}
	cfg.Log.Info("Booking audit consumer stopped")
}
