package loadgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/sonar/internal/domain/types"
	"github.com/okian/sonar/pkg/logger"
)

const outputFilePermission = 0o600

// plan is everything submitted for one synthetic user.
type plan struct {
	userID string
	jobs   []types.RankingJob
}

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout, cfg.Retries)

	log.Info(ctx, "starting sonar load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("eventsPerUser", cfg.EventsPerUser),
		logger.Int("workers", cfg.Workers))

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.Seed)
	if cfg.SeedCatalog {
		n, err := client.UpsertArtists(ctx, gen.Artists())
		if err != nil {
			return stats, fmt.Errorf("catalog seeding failed: %w", err)
		}
		stats.ArtistsSeeded = n
	}

	plans := buildPlans(gen, cfg)
	stats.EventsGenerated = cfg.Users * cfg.EventsPerUser
	if cfg.OutputFile != "" {
		if err := savePlans(cfg.OutputFile, plans); err != nil {
			log.Warn(ctx, "failed to save jobs to file", logger.Error(err))
		}
	}

	accepted := submit(ctx, client, cfg, plans, stats, log)

	ranked, err := waitRanked(ctx, client, cfg, accepted)
	for _, r := range ranked {
		stats.EventsRanked += len(r)
	}
	if err != nil {
		return stats, err
	}

	var errs []error
	for userID, events := range ranked {
		top, err := client.TopN(ctx, userID, cfg.TopN)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetching top %d for %s: %w", cfg.TopN, userID, err))
			continue
		}
		if err := VerifyUser(userID, events, top); err != nil {
			errs = append(errs, err)
			continue
		}
		stats.UsersVerified++
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "load run finished",
		logger.Int("jobsAccepted", stats.JobsAccepted),
		logger.Int("jobsDuplicate", stats.JobsDuplicate),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Int("eventsRanked", stats.EventsRanked),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Duration("duration", stats.Duration))

	if len(errs) > 0 {
		return stats, errors.Join(errs...)
	}
	if stats.JobsFailed > 0 {
		return stats, fmt.Errorf("%d of %d jobs failed: %w", stats.JobsFailed, stats.JobsSubmitted, ErrStatus)
	}
	return stats, nil
}

func buildPlans(gen *Generator, cfg Config) []plan {
	runID := uuid.NewString()[:8]
	plans := make([]plan, cfg.Users)
	for i := range plans {
		userID := fmt.Sprintf("loadgen-%s-%03d", runID, i)
		profile := gen.Profile(userID)
		events := gen.Events(cfg.EventsPerUser, cfg.MusicRatio)

		p := plan{userID: userID}
		for start := 0; start < len(events); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(events))
			p.jobs = append(p.jobs, types.RankingJob{
				JobID:   uuid.NewString(),
				Profile: profile,
				Events:  events[start:end],
			})
		}
		plans[i] = p
	}
	return plans
}

// submit posts every job with cfg.Workers submitters and returns, per user,
// the event ids of jobs the server took.
func submit(ctx context.Context, client *Client, cfg Config, plans []plan, stats *Stats, log logger.Logger) map[string][]string {
	var (
		mu                          sync.Mutex
		accepted                    = make(map[string][]string, len(plans))
		ok, duplicate, failed, sent int64
	)

	jobs := make(chan types.RankingJob, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				atomic.AddInt64(&sent, 1)
				ack, err := client.Submit(ctx, job)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "job submission failed", logger.String("jobID", job.JobID), logger.Error(err))
					continue
				}
				if ack.Duplicate {
					atomic.AddInt64(&duplicate, 1)
				} else {
					atomic.AddInt64(&ok, 1)
				}
				mu.Lock()
				for _, ev := range job.Events {
					accepted[job.Profile.UserID] = append(accepted[job.Profile.UserID], ev.Key())
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, p := range plans {
		for _, job := range p.jobs {
			select {
			case <-ctx.Done():
				break feed
			case jobs <- job:
			}
		}
	}
	close(jobs)
	wg.Wait()

	stats.JobsSubmitted = int(sent)
	stats.JobsAccepted = int(ok)
	stats.JobsDuplicate = int(duplicate)
	stats.JobsFailed = int(failed)
	return accepted
}

// waitRanked polls until every accepted event has a rank or cfg.WaitTimeout
// passes.
func waitRanked(ctx context.Context, client *Client, cfg Config, accepted map[string][]string) (map[string][]types.RankedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.WaitTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		out     = make(map[string][]types.RankedEvent, len(accepted))
		pending atomic.Int64
		wg      sync.WaitGroup
	)
	users := make(chan string)
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range users {
				got, missing := pollUser(ctx, client, cfg.PollInterval, userID, accepted[userID])
				pending.Add(int64(missing))
				mu.Lock()
				out[userID] = got
				mu.Unlock()
			}
		}()
	}
	for userID := range accepted {
		users <- userID
	}
	close(users)
	wg.Wait()

	if n := pending.Load(); n > 0 {
		return out, fmt.Errorf("%d events still unranked: %w", n, ErrTimeout)
	}
	return out, nil
}

// pollUser looks up each event until found or ctx ends and returns the
// found events plus how many are still missing.
func pollUser(ctx context.Context, client *Client, interval time.Duration, userID string, eventIDs []string) ([]types.RankedEvent, int) {
	found := make(map[string]types.RankedEvent, len(eventIDs))
	for {
		for _, id := range eventIDs {
			if _, ok := found[id]; ok {
				continue
			}
			e, err := client.Rank(ctx, userID, id)
			if err == nil {
				found[id] = e
			}
		}
		if len(found) == len(eventIDs) || sleep(ctx, interval) != nil {
			break
		}
	}

	// Ranks shift while events land, so refresh once everything is in.
	out := make([]types.RankedEvent, 0, len(found))
	for id, e := range found {
		if len(found) == len(eventIDs) {
			if fresh, err := client.Rank(ctx, userID, id); err == nil {
				e = fresh
			}
		}
		out = append(out, e)
	}
	return out, len(eventIDs) - len(found)
}

func savePlans(path string, plans []plan) error {
	jobs := make([]types.RankingJob, 0, len(plans))
	for _, p := range plans {
		jobs = append(jobs, p.jobs...)
	}
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}
	if err := os.WriteFile(path, b, outputFilePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
