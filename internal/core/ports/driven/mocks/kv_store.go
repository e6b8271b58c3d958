package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.KeyValueStore = (*MockKeyValueStore)(nil)

// MockKeyValueStore is an in-memory KeyValueStore with a controllable clock
type MockKeyValueStore struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	now     func() time.Time

	// SetNXFn overrides SetNX when set
	SetNXFn func(key, value string, ttl time.Duration) (bool, error)
}

type kvEntry struct {
	value   string
	expires time.Time
}

// NewMockKeyValueStore creates a new MockKeyValueStore
func NewMockKeyValueStore() *MockKeyValueStore {
	return &MockKeyValueStore{
		entries: make(map[string]kvEntry),
		now:     time.Now,
	}
}

func (m *MockKeyValueStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if m.SetNXFn != nil {
		return m.SetNXFn(key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && m.now().Before(e.expires) {
		return false, nil
	}
	m.entries[key] = kvEntry{value: value, expires: m.now().Add(ttl)}
	return true, nil
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		return "", domain.ErrNotFound
	}
	return e.value, nil
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Helper methods for testing

// Advance moves the store's clock forward
func (m *MockKeyValueStore) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.now()
	m.now = func() time.Time { return base.Add(d) }
}

func (m *MockKeyValueStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
