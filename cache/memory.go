package cache

import (
	"context"
	"sync"
	"time"

	"github.com/getkayan/teamwork/authz"
)

type memoryEntry struct {
	codes     []authz.Code
	expiresAt time.Time
}

// MemoryStore is an in-memory Store for tests and single-instance
// deployments. Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]authz.Code, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.codes, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, codes []authz.Code, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{codes: codes, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
