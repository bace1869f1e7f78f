// Package service wires the scorer, artist catalog, task queue, worker pool
// and rank store into the operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/sonar/internal/adapters/catalog"
	eventqueue "github.com/okian/sonar/internal/adapters/mq/queue"
	workerpool "github.com/okian/sonar/internal/adapters/mq/worker"
	"github.com/okian/sonar/internal/adapters/repository"
	"github.com/okian/sonar/internal/config"
	"github.com/okian/sonar/internal/domain/dedupe"
	"github.com/okian/sonar/internal/domain/model"
	"github.com/okian/sonar/internal/domain/scoring"
	"github.com/okian/sonar/internal/domain/types"
	"github.com/okian/sonar/pkg/logger"
	"github.com/okian/sonar/pkg/metrics"
)

// Service implements the API dependencies for event ranking.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	scorer     *scoring.Scorer
	catalog    *catalog.Store
	resolver   *catalog.BreakerResolver
	rankings   *repository.TreapStore
	deduper    dedupe.Deduper
	taskQueue  eventqueue.Queue
	workerPool *workerpool.Pool

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	scorer, err := scoring.New(scoring.WithConfig(s.cfg.Scoring))
	if err != nil {
		return fmt.Errorf("building scorer: %w", err)
	}
	store, err := catalog.Open(s.cfg.Catalog.Path)
	if err != nil {
		return err
	}

	s.scorer = scorer
	s.catalog = store
	s.resolver = catalog.NewBreakerResolver(store,
		catalog.WithFailureThreshold(s.cfg.Catalog.BreakerFailures),
		catalog.WithOpenTimeout(s.cfg.Catalog.BreakerTimeout),
		catalog.WithCountInterval(s.cfg.Catalog.BreakerInterval),
		catalog.WithLookupTimeout(s.cfg.Catalog.LookupTimeout),
		catalog.WithLogger(s.logger.Named("catalog")),
	)
	s.rankings = repository.NewTreapStore(ctx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.taskQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.QueueSize))
	s.workerPool = workerpool.NewPool(s.cfg.WorkerCount, s.taskQueue, s.scorer, s.rankings,
		workerpool.WithResolver(s.resolver),
	)
	// Workers outlive the request-scoped ctx; Stop ends them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "sonar service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.Int("dedupe_size", s.cfg.DedupeSize),
		logger.String("catalog", s.cfg.Catalog.Path),
	)
	return nil
}

// Stop drains queued tasks and releases resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping sonar service...")
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	_ = s.rankings.Close()
	if err := s.catalog.Close(); err != nil {
		s.logger.Warn(ctx, "closing catalog", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "sonar service stopped")
}

// Config returns the effective configuration.
func (s *Service) Config() config.Config {
	return *s.cfg
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Score enriches ev from the catalog and scores it against p synchronously.
func (s *Service) Score(ctx context.Context, ev model.Event, p model.UserTasteProfile) (scoring.Result, error) {
	if !s.running() {
		return scoring.Result{}, ErrNotStarted
	}
	return workerpool.Evaluate(ctx, s.resolver, s.scorer, ev, p, s.logger)
}

// SubmitRanking queues one scoring task per event. A job ID that was already
// accepted is acknowledged as a duplicate and not queued again.
func (s *Service) SubmitRanking(ctx context.Context, job types.RankingJob) (types.Ack, error) {
	if !s.running() {
		return types.Ack{}, ErrNotStarted
	}

	userID := strings.TrimSpace(job.Profile.UserID)
	switch {
	case userID == "":
		return types.Ack{}, fmt.Errorf("profile.user_id is required: %w", ErrInvalidJob)
	case len(job.Events) == 0:
		return types.Ack{}, fmt.Errorf("at least one event is required: %w", ErrInvalidJob)
	case len(job.Events) > s.cfg.MaxEventsPerJob:
		return types.Ack{}, fmt.Errorf("%d events exceeds the limit of %d: %w",
			len(job.Events), s.cfg.MaxEventsPerJob, ErrInvalidJob)
	}
	keys := make(map[string]int, len(job.Events))
	for i, ev := range job.Events {
		if strings.TrimSpace(ev.Name) == "" {
			return types.Ack{}, fmt.Errorf("event %d has no name: %w", i, scoring.ErrInvalidInput)
		}
		key := ev.Key()
		if key == "" {
			return types.Ack{}, fmt.Errorf("event %d has no usable key: %w", i, ErrInvalidJob)
		}
		if j, dup := keys[key]; dup {
			return types.Ack{}, fmt.Errorf("events %d and %d share key %q: %w", j, i, key, ErrInvalidJob)
		}
		keys[key] = i
	}

	jobID := strings.TrimSpace(job.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if s.deduper.SeenAndRecord(ctx, jobID) {
		metrics.RecordRankingDuplicate()
		s.logger.Debug(ctx, "duplicate ranking job", logger.String("job_id", jobID))
		return types.Ack{Status: types.AckDuplicate, JobID: jobID, Duplicate: true}, nil
	}

	profile := job.Profile
	profile.UserID = userID
	tasks := make([]eventqueue.Task, len(job.Events))
	for i, ev := range job.Events {
		tasks[i] = eventqueue.Task{JobID: jobID, UserID: userID, Profile: &profile, Event: ev}
	}

	if err := s.taskQueue.EnqueueBatch(ctx, tasks); err != nil {
		s.deduper.Unrecord(ctx, jobID)
		if errors.Is(err, eventqueue.ErrFull) {
			return types.Ack{}, fmt.Errorf("job %s with %d tasks: %w", jobID, len(tasks), ErrBackpressure)
		}
		return types.Ack{}, fmt.Errorf("queueing job %s: %w", jobID, err)
	}

	metrics.RecordRankingJob(len(tasks))
	s.logger.Debug(ctx, "ranking job accepted",
		logger.String("job_id", jobID),
		logger.String("user_id", userID),
		logger.Int("tasks", len(tasks)),
	)
	return types.Ack{Status: types.AckAccepted, JobID: jobID, Tasks: len(tasks)}, nil
}

// TopN returns up to limit ranked events for userID. The limit is capped at
// the configured maximum.
func (s *Service) TopN(ctx context.Context, userID string, limit int) ([]types.RankedEvent, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	entries, err := s.rankings.TopN(ctx, userID, min(limit, s.cfg.MaxRankingLimit))
	if err != nil {
		return nil, err
	}
	out := make([]types.RankedEvent, len(entries))
	for i, e := range entries {
		out[i] = toRankedEvent(e)
	}
	return out, nil
}

// Rank returns one event's position in userID's ranking.
func (s *Service) Rank(ctx context.Context, userID, eventID string) (types.RankedEvent, error) {
	if !s.running() {
		return types.RankedEvent{}, ErrNotStarted
	}
	e, err := s.rankings.Rank(ctx, userID, eventID)
	if err != nil {
		return types.RankedEvent{}, err
	}
	return toRankedEvent(e), nil
}

// UpsertArtists adds or replaces catalog artists.
func (s *Service) UpsertArtists(ctx context.Context, artists []catalog.Artist) (int, error) {
	if !s.running() {
		return 0, ErrNotStarted
	}
	return s.catalog.Upsert(ctx, artists)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.Stats{Workers: s.cfg.WorkerCount, QueueCapacity: s.cfg.QueueSize}
	}

	artists, err := s.catalog.Count(ctx)
	if err != nil {
		s.logger.Warn(ctx, "counting catalog artists", logger.Error(err))
	}
	stats := types.Stats{
		Started:        true,
		QueueLength:    s.taskQueue.Len(ctx),
		QueueCapacity:  s.taskQueue.Cap(),
		Workers:        s.workerPool.Size(),
		Users:          s.rankings.Users(ctx),
		RankedEntries:  s.rankings.Count(ctx),
		SeenJobs:       s.deduper.Size(),
		CatalogArtists: artists,
		BreakerState:   s.resolver.State(),
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
	}
	metrics.UpdateRankStoreSize(stats.Users, stats.RankedEntries)
	return stats
}

func toRankedEvent(e repository.Entry) types.RankedEvent {
	return types.RankedEvent{
		Rank:           e.Rank,
		EventID:        e.EventID,
		Name:           e.Name,
		Score:          e.Score,
		IsMusicEvent:   e.IsMusicEvent,
		Classification: e.Classification,
		JobID:          e.JobID,
		UpdatedAt:      e.UpdatedAt,
	}
}
