package catalog

import (
	"time"

	"github.com/okian/sonar/pkg/logger"
)

// Default breaker settings.
const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	defaultCountInterval    = time.Minute
	defaultLookupTimeout    = 500 * time.Millisecond
	defaultHalfOpenRequests = 1
)

// BreakerOption configures a BreakerResolver.
type BreakerOption func(*breakerSettings)

type breakerSettings struct {
	name          string
	failures      uint32
	openTimeout   time.Duration
	interval      time.Duration
	lookupTimeout time.Duration
	log           logger.Logger
}

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n uint32) BreakerOption {
	return func(s *breakerSettings) {
		if n > 0 {
			s.failures = n
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(s *breakerSettings) {
		if d > 0 {
			s.openTimeout = d
		}
	}
}

// WithCountInterval sets the closed-state window after which counts reset.
// Zero keeps counting until the breaker trips.
func WithCountInterval(d time.Duration) BreakerOption {
	return func(s *breakerSettings) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// WithLookupTimeout bounds every lookup made through the breaker.
func WithLookupTimeout(d time.Duration) BreakerOption {
	return func(s *breakerSettings) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

// WithBreakerName names the breaker in logs.
func WithBreakerName(name string) BreakerOption {
	return func(s *breakerSettings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l logger.Logger) BreakerOption {
	return func(s *breakerSettings) {
		if l != nil {
			s.log = l
		}
	}
}
