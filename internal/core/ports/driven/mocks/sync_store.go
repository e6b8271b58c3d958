package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.SyncRecordStore = (*MockSyncRecordStore)(nil)

// MockSyncRecordStore is an in-memory SyncRecordStore for testing.
// Records are copied on the way in and out like a real database.
type MockSyncRecordStore struct {
	mu      sync.RWMutex
	records map[string]*domain.DocumentSyncRecord

	// SaveFn overrides Save when set
	SaveFn func(record *domain.DocumentSyncRecord) error
}

// NewMockSyncRecordStore creates a new MockSyncRecordStore
func NewMockSyncRecordStore() *MockSyncRecordStore {
	return &MockSyncRecordStore{
		records: make(map[string]*domain.DocumentSyncRecord),
	}
}

func (m *MockSyncRecordStore) Get(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockSyncRecordStore) Save(ctx context.Context, record *domain.DocumentSyncRecord) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(record); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.SourceDocID] = &cp
	return nil
}

func (m *MockSyncRecordStore) ListByStatus(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.DocumentSyncRecord
	for _, r := range m.records {
		if r.Status == status {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockSyncRecordStore) CountByStatus(ctx context.Context) (map[domain.SyncStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.SyncStatus]int)
	for _, r := range m.records {
		counts[r.Status]++
	}
	return counts, nil
}

// Helper methods for testing

// Put stores a record directly
func (m *MockSyncRecordStore) Put(record *domain.DocumentSyncRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.SourceDocID] = &cp
}

// Record returns the stored record or nil
func (m *MockSyncRecordStore) Record(docID string) *domain.DocumentSyncRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[docID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *MockSyncRecordStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
