package repository

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/okian/sonar/pkg/metrics"
)

// Treap-based, in-memory Store implementation with one treap per user.
//
// Ordering: score DESC, then eventID ASC (deterministic). "less" means ranks
// earlier, so an in-order traversal yields the ranking from best to worst.

const defaultMetricsUpdateInterval = 5 * time.Second

type node struct {
	eventID string
	score   int
	prio    uint64
	left    *node
	right   *node
	size    int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks before (bScore, bID).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int, prio uint64) *node {
	if n == nil {
		return &node{eventID: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.eventID) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.eventID:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.eventID):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit event IDs in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.eventID)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// ranking is one user's treap plus the data needed for dense ranks.
type ranking struct {
	root    *node
	byEvent map[string]Entry
	// scoreCounts counts events per score; its key set gives dense ranks.
	scoreCounts map[int]int
}

// denseRank is 1 + the number of distinct scores above score.
func (r *ranking) denseRank(score int) int {
	rank := 1
	for s := range r.scoreCounts {
		if s > score {
			rank++
		}
	}
	return rank
}

var _ Store = (*TreapStore)(nil)

// TreapStore is a concurrency-safe Store.
type TreapStore struct {
	mu                    sync.RWMutex
	users                 map[string]*ranking
	entries               int
	now                   func() time.Time
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewTreapStore constructs a store and starts its metrics updater, which runs
// until ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		users:                 make(map[string]*ranking),
		now:                   time.Now,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops background goroutines.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert in O(log n) expected time.
func (s *TreapStore) Upsert(_ context.Context, userID string, e Entry) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankStoreUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(e.EventID) == "" {
		metrics.RecordErrorByComponent("repository", "invalid_entry")
		return false, ErrInvalidEntry
	}
	e.Rank = 0
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.users[userID]
	if !ok {
		r = &ranking{byEvent: make(map[string]Entry), scoreCounts: make(map[int]int)}
		s.users[userID] = r
	}

	old, existed := r.byEvent[e.EventID]
	if existed {
		r.root = deleteNode(r.root, old.EventID, old.Score)
		if r.scoreCounts[old.Score]--; r.scoreCounts[old.Score] == 0 {
			delete(r.scoreCounts, old.Score)
		}
	} else {
		s.entries++
	}
	r.byEvent[e.EventID] = e
	r.scoreCounts[e.Score]++
	r.root = insert(r.root, e.EventID, e.Score, rand.Uint64())
	return !existed, nil
}

// Rank implements Store.Rank.
func (s *TreapStore) Rank(_ context.Context, userID, eventID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[userID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	e, ok := r.byEvent[eventID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	e.Rank = r.denseRank(e.Score)
	return e, nil
}

// TopN implements Store.TopN.
func (s *TreapStore) TopN(_ context.Context, userID string, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[userID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}

	ids := make([]string, 0, min(n, nsize(r.root)))
	collectTopN(r.root, n, &ids)

	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = r.byEvent[id]
	}
	assignRanksWithTies(out)
	return out, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// Users implements Store.Users.
func (s *TreapStore) Users(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mu.RLock()
				users, entries := len(s.users), s.entries
				s.mu.RUnlock()
				metrics.UpdateRankStoreSize(users, entries)
			}
		}
	}()
}

// assignRanksWithTies gives equal scores the same rank; the next distinct
// score gets the next consecutive rank. entries must already be in order.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}
