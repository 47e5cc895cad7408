package config

const (
	EnvStorageBackend = "STORAGE_BACKEND"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN = "POSTGRES_DSN"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvOpeningHour = "OPENING_HOUR"
	EnvClosingHour = "CLOSING_HOUR"
	EnvWeekStart   = "WEEK_START"
	EnvTimeZone    = "TIME_ZONE"
	EnvCourts      = "COURTS"
	EnvSports      = "SPORTS"
	EnvPhoneRegion = "PHONE_REGION"

	EnvBookingLockTTL  = "BOOKING_LOCK_TTL"
	EnvBookingLockWait = "BOOKING_LOCK_WAIT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvKafkaBrokers          = "KAFKA_BROKERS"
	EnvBookingEventsTopic    = "BOOKING_EVENTS_TOPIC"
	EnvBookingEventsDLQTopic = "BOOKING_EVENTS_DLQ_TOPIC"
	EnvKafkaConsumerGroup    = "KAFKA_CONSUMER_GROUP"
)
