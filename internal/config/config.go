// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and environment variables on top of New.
// - Every loaded Config is validated; failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/sonar/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory scoring task queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many ranking job IDs are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRankingLimit caps GET /rankings/{user_id}?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// MaxEventsPerJob caps the events accepted in one ranking job.
	MaxEventsPerJob int `koanf:"max_events_per_job"`

	// ShutdownTimeout bounds graceful shutdown of HTTP and workers.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimit      `koanf:"rate_limit"`
	Catalog   Catalog        `koanf:"catalog"`
	Scoring   scoring.Config `koanf:"scoring"`
}

// RateLimit configures the token bucket in front of the write endpoints.
// A zero RequestsPerSecond disables limiting.
type RateLimit struct {
	RequestsPerSecond float64 `koanf:"rps"`
	Burst             int     `koanf:"burst"`
}

// Catalog configures the artist metadata store and its circuit breaker.
type Catalog struct {
	// Path is the SQLite file; ":memory:" keeps the catalog in memory.
	Path string `koanf:"path"`

	// LookupTimeout bounds a single resolver call.
	LookupTimeout time.Duration `koanf:"lookup_timeout"`

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32 `koanf:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`

	// BreakerInterval resets the closed-state failure counts; zero never resets.
	BreakerInterval time.Duration `koanf:"breaker_interval"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       50_000,
		WorkerCount:     runtime.NumCPU() * 4,
		DedupeSize:      100_000,
		MaxRankingLimit: 100,
		MaxEventsPerJob: 1_000,
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimit{
			RequestsPerSecond: 200,
			Burst:             400,
		},
		Catalog: Catalog{
			Path:            ":memory:",
			LookupTimeout:   500 * time.Millisecond,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			BreakerInterval: time.Minute,
		},
		Scoring: scoring.DefaultConfig(),
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("queue_size must be positive, got %d: %w", c.QueueSize, ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("worker_count must be positive, got %d: %w", c.WorkerCount, ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("dedupe_size must be positive, got %d: %w", c.DedupeSize, ErrInvalidConfig)
	case c.MaxRankingLimit < 1:
		return fmt.Errorf("max_ranking_limit must be positive, got %d: %w", c.MaxRankingLimit, ErrInvalidConfig)
	case c.MaxEventsPerJob < 1:
		return fmt.Errorf("max_events_per_job must be positive, got %d: %w", c.MaxEventsPerJob, ErrInvalidConfig)
	case c.RateLimit.RequestsPerSecond < 0:
		return fmt.Errorf("rate_limit.rps must not be negative: %w", ErrInvalidConfig)
	case c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1:
		return fmt.Errorf("rate_limit.burst must be positive when limiting: %w", ErrInvalidConfig)
	case c.Catalog.Path == "":
		return fmt.Errorf("catalog.path must not be empty: %w", ErrInvalidConfig)
	case c.Catalog.BreakerFailures < 1:
		return fmt.Errorf("catalog.breaker_failures must be positive: %w", ErrInvalidConfig)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w: %w", ErrInvalidConfig, err)
	}
	return nil
}
