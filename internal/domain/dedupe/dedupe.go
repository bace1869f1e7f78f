// Package dedupe tracks ranking job IDs so a resubmitted job is acknowledged
// without being scored twice.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper records seen job IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the job can be resubmitted, e.g. after the
	// queue rejected it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// node is one entry of the insertion-ordered list.
type node struct {
	id         string
	prev, next *node
}

// inMemoryDeduper keeps at most maxSize IDs and evicts the oldest first.
// maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*node
	oldest  *node
	newest  *node
	maxSize int
	pool    sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.pool.New = func() any { return &node{} }
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.remove(d.oldest)
	}

	n := d.pool.Get().(*node)
	n.id = id
	n.prev = d.newest
	if d.newest != nil {
		d.newest.next = n
	}
	d.newest = n
	if d.oldest == nil {
		d.oldest = n
	}
	d.seen[id] = n
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.seen[id]; ok {
		d.remove(n)
	}
}

// remove unlinks n and returns it to the pool. Caller holds d.mu.
func (d *inMemoryDeduper) remove(n *node) {
	if n == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.oldest = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.newest = n.prev
	}
	delete(d.seen, n.id)
	*n = node{}
	d.pool.Put(n)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
