package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"courtbook/pkg/client"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"
)

type Config struct {
	StorageBackend string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresDSN string

	Port string

	OpeningHour  int
	ClosingHour  int
	WeekStartRaw string
	TimeZone     string
	CourtsRaw    string
	SportsRaw    string
	PhoneRegion  string

	BookingLockTTL  time.Duration
	BookingLockWait time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	KafkaBrokers          []string
	BookingEventsTopic    string
	BookingEventsDLQTopic string
	KafkaConsumerGroup    string

	// Resolved by Validate.
	Courts    []model.Court
	Sports    []model.Sport
	WeekStart time.Weekday
	Location  *time.Location

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		StorageBackend: strings.ToLower(getEnvStr(EnvStorageBackend, DefaultStorageBackend)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresDSN: getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),

		Port: getEnvStr(EnvPort, DefaultPort),

		OpeningHour:  getEnvNum(EnvOpeningHour, DefaultOpeningHour),
		ClosingHour:  getEnvNum(EnvClosingHour, DefaultClosingHour),
		WeekStartRaw: getEnvStr(EnvWeekStart, DefaultWeekStart),
		TimeZone:     getEnvStr(EnvTimeZone, DefaultTimeZone),
		CourtsRaw:    getEnvStr(EnvCourts, DefaultCourts),
		SportsRaw:    getEnvStr(EnvSports, DefaultSports),
		PhoneRegion:  strings.ToUpper(getEnvStr(EnvPhoneRegion, DefaultPhoneRegion)),

		BookingLockTTL:  getEnvDuration(EnvBookingLockTTL, DefaultBookingLockTTL),
		BookingLockWait: getEnvDuration(EnvBookingLockWait, DefaultBookingLockWait),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		KafkaBrokers:          splitList(getEnvStr(EnvKafkaBrokers, "")),
		BookingEventsTopic:    getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		BookingEventsDLQTopic: getEnvStr(EnvBookingEventsDLQTopic, DefaultBookingEventsDLQTopic),
		KafkaConsumerGroup:    getEnvStr(EnvKafkaConsumerGroup, DefaultKafkaConsumerGroup),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// SetStore connects the client for the configured durable backend.
// The memory backend needs no connection.
func (cfg *Config) SetStore() {
	switch cfg.StorageBackend {
	case BackendMongo:
		cfg.SetMongo()
	case BackendPostgres:
		cfg.SetPostgres()
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
}

// EventsEnabled reports whether booking lifecycle events should be published.
func (cfg *Config) EventsEnabled() bool {
	return len(cfg.KafkaBrokers) > 0
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			errors = append(errors, "PostgresDSN cannot be empty")
		}
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of memory, mongo, postgres, got: %s", cfg.StorageBackend))
	}

	if cfg.OpeningHour < 0 || cfg.ClosingHour > 24 || cfg.OpeningHour >= cfg.ClosingHour {
		errors = append(errors, fmt.Sprintf("OpeningHour (%d) must be before ClosingHour (%d) within 0..24", cfg.OpeningHour, cfg.ClosingHour))
	}

	if day, err := ParseWeekday(cfg.WeekStartRaw); err != nil {
		errors = append(errors, fmt.Sprintf("WeekStart is invalid: %v", err))
	} else {
		cfg.WeekStart = day
	}

	if loc, err := time.LoadLocation(cfg.TimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("TimeZone %q cannot be loaded: %v", cfg.TimeZone, err))
	} else {
		cfg.Location = loc
	}

	if courts, err := ParseCourts(cfg.CourtsRaw); err != nil {
		errors = append(errors, fmt.Sprintf("Courts are invalid: %v", err))
	} else {
		cfg.Courts = courts
	}

	if sports, err := ParseSports(cfg.SportsRaw); err != nil {
		errors = append(errors, fmt.Sprintf("Sports are invalid: %v", err))
	} else {
		cfg.Sports = sports
	}

	if len(cfg.PhoneRegion) != 2 {
		errors = append(errors, fmt.Sprintf("PhoneRegion must be a two letter region code, got: %s", cfg.PhoneRegion))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.BookingLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("BookingLockTTL must be positive, got: %s", cfg.BookingLockTTL))
	} else if cfg.BookingLockTTL <= cfg.WriteTimeout {
		errors = append(errors, fmt.Sprintf("BookingLockTTL (%s) must be longer than WriteTimeout (%s)", cfg.BookingLockTTL, cfg.WriteTimeout))
	}
	if cfg.BookingLockWait <= 0 {
		errors = append(errors, fmt.Sprintf("BookingLockWait must be positive, got: %s", cfg.BookingLockWait))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.EventsEnabled() && cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty when KafkaBrokers are set")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_dsn", redactPostgresDSN(cfg.PostgresDSN),
		"port", cfg.Port,
		"opening_hour", cfg.OpeningHour,
		"closing_hour", cfg.ClosingHour,
		"week_start", cfg.WeekStart.String(),
		"time_zone", cfg.TimeZone,
		"courts", len(cfg.Courts),
		"sports", len(cfg.Sports),
		"phone_region", cfg.PhoneRegion,
		"booking_lock_ttl", cfg.BookingLockTTL,
		"booking_lock_wait", cfg.BookingLockWait,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"kafka_brokers", cfg.KafkaBrokers,
		"booking_events_topic", cfg.BookingEventsTopic,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactPostgresDSN(dsn string) string {
	passwordRegex := regexp.MustCompile(`password=\S+`)
	urlRegex := regexp.MustCompile(`(postgres(ql)?://)[^:]+:[^@]+@`)
	return urlRegex.ReplaceAllString(passwordRegex.ReplaceAllString(dsn, "password=***"), "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
