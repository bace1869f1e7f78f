package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/sonar/pkg/metrics"
	"golang.org/x/time/rate"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(wrapped.statusCode), durationMs)
		if wrapped.statusCode >= http.StatusBadRequest {
			metrics.RecordErrorByComponent("http", statusErrorType(wrapped.statusCode))
		}
	}
}

// RateLimiter is a token bucket shared by every client of the guarded routes.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter allowing rps requests per second with the
// given burst, or nil when rps is not positive.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1))}
}

// Allow reports whether a request may proceed. A nil limiter allows all.
func (l *RateLimiter) Allow() bool {
	return l == nil || l.limiter.Allow()
}

// RateLimitMiddleware rejects requests with 429 once l is exhausted.
func RateLimitMiddleware(l *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			metrics.RecordRateLimited()
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Code:    "rate_limited",
				Message: NewKind("api.rate_limit", ErrRateLimited).Error(),
			})
			return
		}
		next(w, r)
	}
}

// statusErrorType buckets an error status for the errors_by_component metric.
func statusErrorType(code int) string {
	switch {
	case code == http.StatusServiceUnavailable:
		return "unavailable"
	case code >= http.StatusInternalServerError:
		return "server_error"
	case code == http.StatusTooManyRequests:
		return "throttled"
	case code == http.StatusNotFound:
		return "not_found"
	default:
		return "client_error"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
