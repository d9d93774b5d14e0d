package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/dendroclim/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Result sinks.
const (
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Sink selects where results are written: kafka or postgres.
	Sink        string
	DatabaseURL string

	// ResultCacheSize bounds the stored results kept in memory for reads. Zero
	// disables the cache.
	ResultCacheSize int

	// Analysis defaults for jobs that leave them unset.
	DefaultComparator string
	SmoothingWindow   int
	Season            domain.SeasonOptions
}

// JobDefaults returns the analysis defaults handed to the job parser.
func (c *Config) JobDefaults() domain.JobDefaults {
	return domain.JobDefaults{SmoothingWindow: c.SmoothingWindow, Season: c.Season}
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cacheSize, err := envInt("RESULT_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	season := domain.DefaultSeasonOptions()
	smoothingWindow, err := envInt("SMOOTHING_WINDOW", 0)
	if err != nil {
		return nil, err
	}
	if season.SmoothingWindow, err = envInt("SEASON_SMOOTHING_WINDOW", season.SmoothingWindow); err != nil {
		return nil, err
	}
	if season.StartWindow, err = envInt("SEASON_START_WINDOW", season.StartWindow); err != nil {
		return nil, err
	}
	if season.StartThreshold, err = envFloat("SEASON_START_THRESHOLD", season.StartThreshold); err != nil {
		return nil, err
	}
	if season.EndThreshold, err = envFloat("SEASON_END_THRESHOLD", season.EndThreshold); err != nil {
		return nil, err
	}
	if season.StartWindow < 1 {
		return nil, errors.New("SEASON_START_WINDOW must be at least 1")
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "analysis-jobs"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "analysis-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "dendroclim"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		Sink:        sharedcfg.EnvOrDefault("SINK", SinkKafka),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ResultCacheSize: cacheSize,

		DefaultComparator: sharedcfg.EnvOrDefault("DEFAULT_COMPARATOR", "pearson"),
		SmoothingWindow:   smoothingWindow,
		Season:            season,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	switch cfg.Sink {
	case SinkKafka:
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	case SinkPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("SINK is postgres but DATABASE_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid SINK %q: expected kafka or postgres", cfg.Sink)
	}

	return cfg, nil
}

// envInt parses a non-negative integer variable.
func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a non-negative integer", key, s)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected a number", key, s)
	}
	return v, nil
}
