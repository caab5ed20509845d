package storage

import (
	"context"
	"sync"
)

type itemKey struct {
	service string
	account string
}

// MemoryStore keeps items for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[itemKey][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[itemKey][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, service, account string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemKey{service, account}] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, service, account string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[itemKey{service, account}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, service, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, itemKey{service, account})
	return nil
}
