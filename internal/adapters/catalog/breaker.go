package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/sonar/pkg/logger"
	"github.com/okian/sonar/pkg/metrics"
	"github.com/sony/gobreaker/v2"
)

// Lookup outcomes recorded in metrics.
const (
	lookupOK       = "ok"
	lookupError    = "error"
	lookupRejected = "rejected"
)

// BreakerResolver guards a Resolver with a circuit breaker so a slow or
// failing catalog degrades scoring instead of stalling it.
type BreakerResolver struct {
	next    Resolver
	cb      *gobreaker.CircuitBreaker[map[string]Artist]
	timeout time.Duration
	log     logger.Logger
}

var _ Resolver = (*BreakerResolver)(nil)

// NewBreakerResolver wraps next.
func NewBreakerResolver(next Resolver, opts ...BreakerOption) *BreakerResolver {
	cfg := breakerSettings{
		name:          "catalog",
		failures:      defaultFailureThreshold,
		openTimeout:   defaultOpenTimeout,
		interval:      defaultCountInterval,
		lookupTimeout: defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.Get().Named("catalog")
	}

	b := &BreakerResolver{next: next, timeout: cfg.lookupTimeout, log: cfg.log}
	b.cb = gobreaker.NewCircuitBreaker[map[string]Artist](gobreaker.Settings{
		Name:        cfg.name,
		MaxRequests: defaultHalfOpenRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateCatalogBreakerState(breakerGauge(to))
			b.log.Warn(context.Background(), "catalog breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	metrics.UpdateCatalogBreakerState(metrics.BreakerClosed)
	return b
}

// Lookup implements Resolver.
func (b *BreakerResolver) Lookup(ctx context.Context, names []string) (map[string]Artist, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	found, err := b.cb.Execute(func() (map[string]Artist, error) {
		return b.next.Lookup(ctx, names)
	})
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCatalogLookup(lookupRejected, elapsed)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	case err != nil:
		metrics.RecordCatalogLookup(lookupError, elapsed)
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	metrics.RecordCatalogLookup(lookupOK, elapsed)
	return found, nil
}

// State reports the breaker state: closed, half-open or open.
func (b *BreakerResolver) State() string {
	return b.cb.State().String()
}

func breakerGauge(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}
