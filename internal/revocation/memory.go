package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps revocation records in a mutex-guarded map with a
// background sweep that evicts expired entries. State does not survive a
// restart; acceptable for single-process deployments without redis or
// postgres.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s
}

func (s *MemoryStore) Add(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = expiresAt
	return nil
}

func (s *MemoryStore) Has(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(s.now()) {
		delete(s.entries, token)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[token]
	delete(s.entries, token)
	return ok, nil
}

func (s *MemoryStore) Size(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Cleanup(_ context.Context) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, expiresAt := range s.entries {
		if !expiresAt.After(now) {
			delete(s.entries, token)
		}
	}
	return nil
}

// Close stops the background sweep. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_ = s.Cleanup(context.Background())
		}
	}
}
