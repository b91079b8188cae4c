package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps chunks in a map. It is the default backend and the one
// used by tests.
type MemoryStore struct {
	lk   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string][]byte{},
	}
}

// Type implements Store.
func (s *MemoryStore) Type() string { return MemoryEngine }

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	d, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), d...), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, val []byte) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = append([]byte(nil), val...)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.lk.RLock()
	defer s.lk.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close implements Store. A closed MemoryStore keeps its contents.
func (s *MemoryStore) Close() error { return nil }
