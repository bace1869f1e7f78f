// Package worker drains the task queue: each task is enriched from the
// artist catalog, scored, and written to the user's ranking.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/sonar/internal/adapters/catalog"
	"github.com/okian/sonar/internal/adapters/mq/queue"
	"github.com/okian/sonar/internal/adapters/repository"
	"github.com/okian/sonar/internal/domain/model"
	"github.com/okian/sonar/internal/domain/scoring"
	"github.com/okian/sonar/pkg/logger"
	"github.com/okian/sonar/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Updater stores a scored event in a user's ranking.
type Updater interface {
	Upsert(ctx context.Context, userID string, e repository.Entry) (bool, error)
}

// Scorer computes a match score.
type Scorer interface {
	Score(ev model.Event, p model.UserTasteProfile) (scoring.Result, error)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Worker processes tasks and writes ranking updates.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker once the current task is done.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	scorer   Scorer
	updater  Updater
	resolver catalog.Resolver
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer Scorer, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		scorer:   scorer,
		updater:  updater,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			if err := w.process(ctx, t); err != nil {
				w.logger.Error(ctx, "error processing task",
					logger.String("job_id", t.JobID),
					logger.String("user_id", t.UserID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) error { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var profile model.UserTasteProfile
	if t.Profile != nil {
		profile = *t.Profile
	}

	res, err := Evaluate(ctx, w.resolver, w.scorer, t.Event, profile, w.logger)
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("failed to score event %s: %w", t.Event.Key(), err)
	}

	_, err = w.updater.Upsert(ctx, t.UserID, repository.Entry{
		EventID:        t.Event.Key(),
		Name:           t.Event.Name,
		Score:          res.Score,
		IsMusicEvent:   res.IsMusicEvent,
		Classification: string(res.Classification),
		JobID:          t.JobID,
	})
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "rank_store_error")
		return fmt.Errorf("ranking update failed for event %s: %w", t.Event.Key(), err)
	}
	return nil
}

// Evaluate enriches ev from r when it lacks genres or audio features, then
// scores it. Enrichment failures are logged and scoring proceeds on the
// event as given.
func Evaluate(ctx context.Context, r catalog.Resolver, s Scorer, ev model.Event, p model.UserTasteProfile, log logger.Logger) (scoring.Result, error) {
	if r != nil {
		enriched, err := catalog.Enrich(ctx, r, ev)
		if err != nil {
			metrics.RecordErrorByComponent("worker", "enrich_error")
			log.Warn(ctx, "scoring without catalog enrichment",
				logger.String("event", ev.Name),
				logger.Error(err),
			)
		}
		ev = enriched
	}

	start := time.Now()
	res, err := s.Score(ev, p)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordScoringError("invalid_input")
		return scoring.Result{}, err
	}

	metrics.RecordEventScored(string(res.Classification), res.IsMusicEvent, res.Score)
	for _, f := range res.Skipped() {
		metrics.RecordFactorSkipped(string(f))
	}
	return res, nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a worker pool. opts are applied to every worker.
func NewPool(workerCount int, q Queue, scorer Scorer, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, scorer, updater, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
