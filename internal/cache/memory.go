package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	written time.Time
}

// MemoryStore is a bounded in-process store. When the entry count exceeds
// MaxEntries the oldest entries are evicted; entries older than MaxAge are
// treated as absent.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	maxAge     time.Duration
}

// MemoryOptions bounds a MemoryStore.
type MemoryOptions struct {
	MaxEntries int           // default 1024
	MaxAge     time.Duration // zero means no age bound
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1024
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: opts.MaxEntries,
		maxAge:     opts.MaxAge,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if s.maxAge > 0 && time.Since(e.written) > s.maxAge {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, ErrMiss
	}
	return e.data, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{data: value, written: time.Now()}
	for len(s.entries) > s.maxEntries {
		s.evictOldestLocked()
	}
	return nil
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.written.Before(oldest) {
			oldestKey, oldest = k, e.written
			first = false
		}
	}
	delete(s.entries, oldestKey)
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
