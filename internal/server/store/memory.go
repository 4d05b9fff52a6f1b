package store

import (
	"context"
	"sync"
)

// MemoryStore keeps collections in process memory. Nothing survives a
// restart; used by tests and ephemeral deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Collection]Records
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Collection]Records)}
}

func (s *MemoryStore) Load(ctx context.Context, c Collection) (Records, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[c].Clone(), nil
}

func (s *MemoryStore) Replace(ctx context.Context, c Collection, recs Records) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c] = recs.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, c Collection, fn UpdateFunc) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data[c].Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.data[c] = next
	return nil
}

func (s *MemoryStore) Close() error { return nil }
