package api

import "github.com/okian/sonar/pkg/logger"

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimit limits the write endpoints to rps requests per second with
// the given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = NewRateLimiter(rps, burst)
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithDefaultLimit sets the ranking page size used when ?limit is absent.
func WithDefaultLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithLogger sets the logger for server errors.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
