package worker

import (
	"github.com/okian/sonar/internal/adapters/catalog"
	"github.com/okian/sonar/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithResolver enables catalog enrichment before scoring.
func WithResolver(r catalog.Resolver) Option {
	return func(w *InMemoryWorker) {
		if r != nil {
			w.resolver = r
		}
	}
}
