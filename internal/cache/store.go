package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached fragment. Only fully buffered content is cacheable.
type Entry struct {
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	InsertedAt  time.Time `json:"inserted_at"`
}

// Age returns how long ago the entry was inserted.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.InsertedAt)
}

// Store is the storage backend behind the Coordinator. Get returns (nil, nil)
// on a miss. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
}

// MemoryStore is a mutex-guarded in-process store. When maxEntries is
// positive and the store is full, the oldest entry is evicted to make room.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int
}

// NewMemoryStore creates an in-memory store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
	}
}

// Get returns the entry for key, or (nil, nil) when absent.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key], nil
}

// Put stores entry under key, evicting the oldest entry when full.
func (s *MemoryStore) Put(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		if _, present := s.entries[key]; !present {
			s.evictOldestLocked()
		}
	}
	s.entries[key] = entry
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range s.entries {
		if oldestKey == "" || e.InsertedAt.Before(oldest) {
			oldestKey = k
			oldest = e.InsertedAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
