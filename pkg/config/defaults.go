package config

import "time"

const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"

	DefaultStorageBackend = BackendMemory

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "courtbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=courtbook port=5432 sslmode=disable"

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultOpeningHour = 6
	DefaultClosingHour = 23
	DefaultWeekStart   = "monday"
	DefaultTimeZone    = "UTC"
	DefaultCourts      = "court-1:Court 1,court-2:Court 2,court-3:Court 3"
	DefaultSports      = "cricket:Cricket:2000,football:Football:2500,pickleball:Pickleball:1500"
	DefaultPhoneRegion = "IN"

	DefaultBookingLockTTL  = 30 * time.Second
	DefaultBookingLockWait = 5 * time.Second

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBookingEventsTopic    = "booking-events"
	DefaultBookingEventsDLQTopic = "booking-events-dlq"
	DefaultKafkaConsumerGroup    = "booking-audit"

	DefaultPaginationLimit = 100
)
