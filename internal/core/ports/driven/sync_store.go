package driven

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// SyncRecordStore handles per-document sync record persistence (PostgreSQL)
type SyncRecordStore interface {
	// Get retrieves the record for a source document.
	// Returns domain.ErrNotFound if the document was never tracked.
	Get(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error)

	// Save creates or updates a record
	Save(ctx context.Context, record *domain.DocumentSyncRecord) error

	// ListByStatus retrieves records with the given status, most recently updated first
	ListByStatus(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error)

	// CountByStatus returns the number of records per status
	CountByStatus(ctx context.Context) (map[domain.SyncStatus]int, error)
}
