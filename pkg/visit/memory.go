package visit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps visits in process memory. A janitor goroutine removes
// expired visits periodically. Visits do not survive a restart.
type MemoryStore struct {
	records map[string]Record
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired visits are purged.
// Zero disables the janitor. Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.cleanupInterval = d
	}
}

// NewMemoryStore creates an in-memory visit store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := &memoryOptions{cleanupInterval: time.Minute}
	for _, opt := range opts {
		opt(o)
	}

	s := &MemoryStore{
		records: make(map[string]Record),
		done:    make(chan struct{}),
	}
	if o.cleanupInterval > 0 {
		go s.janitor(o.cleanupInterval)
	}
	return s
}

// CreateModel is a no-op for the memory store.
func (s *MemoryStore) CreateModel(context.Context) error {
	return nil
}

func (s *MemoryStore) NewVisit(_ context.Context, rec Record) error {
	if rec.Key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Key]; ok {
		return ErrKeyExists
	}
	s.records[rec.Key] = rec
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) UpdateQueuedVisits(_ context.Context, updates map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range updates {
		rec, ok := s.records[key]
		if !ok || !expiry.After(rec.Expiry) {
			continue
		}
		rec.Expiry = expiry
		s.records[key] = rec
	}
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.records {
		if rec.Expired(before) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored visits, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops the janitor. Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			_, _ = s.PurgeExpired(context.Background(), now)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
