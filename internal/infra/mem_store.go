package infra

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

type memEntry struct {
	value    []byte
	revision int64
}

// MemStore is an in-process domain.SharedStore for tests and dry runs.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	seq     int64
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]memEntry)}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(e.value), nil
}

func (m *MemStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value)
	return nil
}

func (m *MemStore) Update(_ context.Context, key string, fn func(cur []byte, found bool) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.entries[key]
	next, err := fn(clone(e.value), found)
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.entries, key)
		return nil
	}
	m.set(key, next)
	return nil
}

func (m *MemStore) Take(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.entries, key)
	return e.value, nil
}

func (m *MemStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemStore) Revision(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key].revision, nil
}

func (m *MemStore) Close() error { return nil }

// Corrupt overwrites key with raw bytes, bypassing the record codec.
func (m *MemStore) Corrupt(key string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, raw)
}

func (m *MemStore) set(key string, value []byte) {
	m.seq++
	m.entries[key] = memEntry{value: clone(value), revision: m.seq}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ domain.SharedStore = (*MemStore)(nil)
