package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Provider configuration.
	ProvidersFile string
	HTTPTimeout   time.Duration
	RedisAddr     string

	// Persistence. An empty DatabaseURL keeps entities in memory.
	DatabaseURL string

	// Geocoded event publishing.
	KafkaBrokers  []string
	KafkaTopic    string
	EventsEnabled bool

	// Backfill job.
	BatchSize           int
	BatchFlushInterval  time.Duration
	BackfillMaxBackoff  time.Duration
	BackfillMaxAttempts int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("GEOCODER_HTTP_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	maxBackoff, err := parsePositiveDuration("BACKFILL_MAX_BACKOFF", "1m")
	if err != nil {
		return nil, err
	}

	maxAttempts, err := strconv.Atoi(sharedcfg.EnvOrDefault("BACKFILL_MAX_ATTEMPTS", "10"))
	if err != nil || maxAttempts <= 0 {
		return nil, errors.New("invalid BACKFILL_MAX_ATTEMPTS")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	eventsEnabled := false
	if v := os.Getenv("EVENTS_ENABLED"); v != "" {
		eventsEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid EVENTS_ENABLED")
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ProvidersFile: sharedcfg.EnvOrDefault("GEOCODER_PROVIDERS_FILE", "providers.yaml"),
		HTTPTimeout:   httpTimeout,
		RedisAddr:     os.Getenv("REDIS_ADDR"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "geocoded-places"),
		EventsEnabled: eventsEnabled,

		BatchSize:           batchSize,
		BatchFlushInterval:  flushInterval,
		BackfillMaxBackoff:  maxBackoff,
		BackfillMaxAttempts: maxAttempts,
	}

	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("EVENTS_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("EVENTS_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}
	if cfg.ProvidersFile == "" {
		return nil, errors.New("GEOCODER_PROVIDERS_FILE is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}
