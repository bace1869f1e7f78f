// Package loadgen drives a running sonar server with synthetic taste
// profiles and events, then checks the rankings it builds.
package loadgen

import (
	"fmt"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Number of synthetic users
	EventsPerUser int           // Events submitted for each user
	BatchSize     int           // Events per ranking job
	MusicRatio    float64       // Share of generated events that are music events
	Workers       int           // Concurrent submitters and pollers
	Timeout       time.Duration // HTTP request timeout
	PollInterval  time.Duration // Delay between ranking polls
	WaitTimeout   time.Duration // How long to wait for every event to be ranked
	TopN          int           // Ranking page fetched per user for order checks
	Retries       int           // Attempts per request on 429
	Seed          uint64        // Generator seed; equal seeds give equal events
	SeedCatalog   bool          // Upload the synthetic artist catalog first
	OutputFile    string        // Optional JSON dump of the submitted jobs
}

// DefaultConfig returns a Config for a local server.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:9080",
		Users:         20,
		EventsPerUser: 50,
		BatchSize:     25,
		MusicRatio:    0.7,
		Workers:       8,
		Timeout:       10 * time.Second,
		PollInterval:  250 * time.Millisecond,
		WaitTimeout:   time.Minute,
		TopN:          20,
		Retries:       5,
		Seed:          1,
		SeedCatalog:   true,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("base url is empty: %w", ErrInvalidConfig)
	case c.Users < 1:
		return fmt.Errorf("users must be positive, got %d: %w", c.Users, ErrInvalidConfig)
	case c.EventsPerUser < 1:
		return fmt.Errorf("events per user must be positive, got %d: %w", c.EventsPerUser, ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("batch size must be positive, got %d: %w", c.BatchSize, ErrInvalidConfig)
	case c.MusicRatio < 0 || c.MusicRatio > 1:
		return fmt.Errorf("music ratio %v outside [0, 1]: %w", c.MusicRatio, ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d: %w", c.Workers, ErrInvalidConfig)
	case c.TopN < 1:
		return fmt.Errorf("top must be positive, got %d: %w", c.TopN, ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	ArtistsSeeded   int
	EventsGenerated int
	JobsSubmitted   int
	JobsAccepted    int
	JobsDuplicate   int
	JobsFailed      int
	EventsRanked    int
	UsersVerified   int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
