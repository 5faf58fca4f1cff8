// Package cache provides the fragment cache with per-key single-flight
// refresh semantics. A lookup that is not fresh locks the key; the caller
// finishes the refresh with exactly one of Put or Abandon, so concurrent
// misses for the same key trigger at most one backend fetch.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/goassemble/internal/logger"
)

// State is the freshness of a cache lookup.
type State int

const (
	// Absent means no entry exists; the key is locked for refresh.
	Absent State = iota
	// Stale means an entry exists but is older than the refresh delay;
	// the key is locked for refresh.
	Stale
	// Fresh means the entry can be served without touching the backend.
	Fresh
)

// String returns the state name for logs and metrics labels.
func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// Coordinator wraps a Store with staleness judgement and per-key refresh
// locking.
type Coordinator struct {
	store   Store
	refresh time.Duration
	log     logger.Logger

	mu    sync.Mutex
	locks map[string]*keyLock

	// now is swappable for tests.
	now func() time.Time
}

// keyLock serializes refreshes of a single key. refs counts lookups holding
// or waiting on the lock so the entry in the locks map can be dropped once
// the last one finishes.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewCoordinator creates a cache coordinator. Entries older than refresh are
// reported Stale.
func NewCoordinator(store Store, refresh time.Duration, log logger.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		refresh: refresh,
		log:     log,
		locks:   make(map[string]*keyLock),
		now:     time.Now,
	}
}

// Lookup returns the cached entry for key and its freshness. When the state
// is not Fresh the key is locked and the caller must call Put or Abandon.
//
// The lock is acquired before the second read so that callers queued behind
// a completed refresh observe Fresh and never reach the backend.
func (c *Coordinator) Lookup(ctx context.Context, key string) (*Entry, State) {
	entry := c.read(ctx, key)
	if c.isFresh(entry) {
		return entry, Fresh
	}

	c.lock(key)

	// Re-read under the lock: another caller may have refreshed the key
	// while we were waiting.
	entry = c.read(ctx, key)
	if c.isFresh(entry) {
		c.unlock(key)
		return entry, Fresh
	}

	if entry != nil {
		return entry, Stale
	}
	return nil, Absent
}

// Put stores the refreshed entry and unlocks the key. A zero InsertedAt is
// stamped with the current time. Store failures are logged and the key is
// still unlocked.
func (c *Coordinator) Put(ctx context.Context, key string, entry *Entry) {
	defer c.unlock(key)

	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = c.now()
	}
	if err := c.store.Put(ctx, key, entry); err != nil {
		c.log.Warn("cache put failed",
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

// Abandon unlocks the key without storing anything. The timestamp of any
// stale entry is left untouched so the next lookup retries the backend.
func (c *Coordinator) Abandon(key string) {
	c.unlock(key)
}

func (c *Coordinator) isFresh(entry *Entry) bool {
	return entry != nil && entry.Age(c.now()) <= c.refresh
}

// read treats store errors as misses; the orchestrator has cheaper sources
// than a broken store.
func (c *Coordinator) read(ctx context.Context, key string) *Entry {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed",
			logger.String("key", key),
			logger.Error(err),
		)
		return nil
	}
	return entry
}

func (c *Coordinator) lock(key string) {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
}

func (c *Coordinator) unlock(key string) {
	c.mu.Lock()
	l, ok := c.locks[key]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
	}
	c.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}
