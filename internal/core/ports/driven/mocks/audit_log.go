package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.AuditLog = (*MockAuditLog)(nil)

// MockAuditLog is an in-memory AuditLog for testing
type MockAuditLog struct {
	mu       sync.RWMutex
	records  []*domain.AuditRecord
	failNext bool
}

// NewMockAuditLog creates a new MockAuditLog
func NewMockAuditLog() *MockAuditLog {
	return &MockAuditLog{}
}

func (m *MockAuditLog) Append(ctx context.Context, record *domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return domain.ErrServiceUnavailable
	}
	for _, r := range m.records {
		if r.AuditID == record.AuditID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *record
	m.records = append(m.records, &cp)
	return nil
}

func (m *MockAuditLog) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.AuditRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == userID {
			result = append(result, m.records[i])
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// Helper methods for testing

func (m *MockAuditLog) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// Records returns every appended record
func (m *MockAuditLog) Records() []*domain.AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.AuditRecord(nil), m.records...)
}
