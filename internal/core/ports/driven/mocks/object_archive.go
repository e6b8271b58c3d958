package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.ObjectArchive = (*MockObjectArchive)(nil)

// MockObjectArchive is an in-memory ObjectArchive for testing
type MockObjectArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// PutFn overrides Put when set
	PutFn func(key string) error
}

// NewMockObjectArchive creates a new MockObjectArchive
func NewMockObjectArchive() *MockObjectArchive {
	return &MockObjectArchive{objects: make(map[string][]byte)}
}

func (m *MockObjectArchive) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if m.PutFn != nil {
		if err := m.PutFn(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MockObjectArchive) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Helper methods for testing

// Object returns the stored bytes and whether the key exists
func (m *MockObjectArchive) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}
