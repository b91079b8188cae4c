// Package testing provides test utilities for the chunk layer.
package testing

import (
	"context"
	"errors"
	"sync"

	"github.com/scigolib/nczarr/internal/store"
)

// ErrInjected is returned by MockStore operations configured to fail.
var ErrInjected = errors.New("injected store failure")

// MockStore wraps a memory store, counts calls and can fail on demand.
type MockStore struct {
	*store.MemoryStore

	mu       sync.Mutex
	gets     int
	puts     int
	failGet  map[string]bool
	failPut  map[string]bool
	putOrder []string
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		MemoryStore: store.NewMemoryStore(),
		failGet:     map[string]bool{},
		failPut:     map[string]bool{},
	}
}

// FailGet makes Get of key return ErrInjected.
func (m *MockStore) FailGet(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet[key] = true
}

// FailPut makes Put of key return ErrInjected.
func (m *MockStore) FailPut(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut[key] = true
}

// Get implements store.Store.
func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.gets++
	fail := m.failGet[key]
	m.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return m.MemoryStore.Get(ctx, key)
}

// Put implements store.Store.
func (m *MockStore) Put(ctx context.Context, key string, val []byte) error {
	m.mu.Lock()
	m.puts++
	fail := m.failPut[key]
	if !fail {
		m.putOrder = append(m.putOrder, key)
	}
	m.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return m.MemoryStore.Put(ctx, key, val)
}

// Gets returns the number of Get calls.
func (m *MockStore) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Puts returns the number of Put calls.
func (m *MockStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// PutKeys returns the keys of successful Put calls in call order.
func (m *MockStore) PutKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.putOrder...)
}

// ResetCounts zeroes the call counters.
func (m *MockStore) ResetCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = 0
	m.puts = 0
	m.putOrder = nil
}
