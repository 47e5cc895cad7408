package main

import (
	"context"
	"time"

	"courtbook/internal/bookings/availability"
	"courtbook/internal/bookings/handler"
	"courtbook/internal/bookings/ledger"
	"courtbook/internal/bookings/service"
	"courtbook/internal/bookings/slots"
	"courtbook/internal/bookings/validator"
	"courtbook/internal/catalog"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/pkg/app"
	"courtbook/pkg/config"
	"courtbook/pkg/kafka"
	kafka_config "courtbook/pkg/kafka/config"
	kafka_middleware "courtbook/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()

	cfg.Log.Info("Starting Bookings service", "backend", cfg.StorageBackend)

	serverApp := app.NewApplication()
	bookingHandler := initServices(cfg, serverApp)
	serverApp.SetApp(cfg, cfg.Client, bookingHandler)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, serverApp *app.Application) *handler.BookingHandler {
	window, err := slots.NewWindow(cfg.OpeningHour, cfg.ClosingHour)
	if err != nil {
		cfg.Log.Fatal("Invalid operating window", "error", err)
	}

	courtCatalog, err := catalog.FromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Invalid catalog", "error", err)
	}

	bookingLedger := initLedger(cfg, window)
	checker := availability.NewChecker(bookingLedger, courtCatalog, window)
	aggregator := metrics.NewAggregator(bookingLedger, courtCatalog, window, cfg.WeekStart, cfg.Location)

	bookingService := service.NewBookingService(
		bookingLedger,
		checker,
		courtCatalog,
		initEvents(cfg, serverApp),
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Booking service initialized",
		"courts", len(courtCatalog.Courts()),
		"sports", len(courtCatalog.Sports()),
		"opening_hour", window.Open,
		"closing_hour", window.Close,
	)
	return handler.NewBookingHandler(bookingService, aggregator, cfg.Log)
}

func initLedger(cfg *config.Config, window slots.Window) ledger.Ledger {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		return ledger.NewMongoLedger(cfg, window)
	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ledger.MigratePostgres(ctx, cfg.Client.Postgres); err != nil {
			cfg.Log.Fatal("Failed to migrate Postgres schema", "error", err)
		}
		return ledger.NewPostgresLedger(cfg.Client.Postgres, window)
	default:
		cfg.Log.Warn("Using in-memory ledger; bookings are lost on restart")
		return ledger.NewMemoryLedger(window)
	}
}

// initEvents returns nil when no brokers are configured, which disables publishing.
func initEvents(cfg *config.Config, serverApp *app.Application) service.EventPublisher {
	if !cfg.EventsEnabled() {
		cfg.Log.Info("Kafka brokers not configured, booking events disabled")
		return nil
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	producerMetrics := &kafka_middleware.Metrics{}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(producerMetrics.ProducerMiddleware())

	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
		cfg.Log.Info("Booking events summary", producerMetrics.Snapshot().LogAttrs()...)
	})

	cfg.Log.Info("Booking events enabled", "topic", producer.Topic(), "dlq_topic", cfg.BookingEventsDLQTopic)
	return events.NewBookingPublisher(producer, ServiceName, cfg.Log)
}
