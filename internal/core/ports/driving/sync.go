package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// SyncStateTracker tracks per-document sync state
type SyncStateTracker interface {
	// NeedsSync reports whether a document observed at modifiedAt must be ingested
	NeedsSync(ctx context.Context, docID string, modifiedAt time.Time) (bool, error)

	// Track records an observation of a document
	Track(ctx context.Context, docID, name string, modifiedAt time.Time) (*domain.DocumentSyncRecord, error)

	// MarkSynced records a successful ingestion
	MarkSynced(ctx context.Context, docID string, modifiedAt time.Time) error

	// MarkFailed records a failed ingestion attempt
	MarkFailed(ctx context.Context, docID, reason string) error

	// MarkDeleted moves a document to the terminal DELETED state
	MarkDeleted(ctx context.Context, docID string) error

	// Get retrieves the record for a document
	Get(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error)

	// ListByStatus retrieves records in a status
	ListByStatus(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error)

	// Stats returns record counts by status
	Stats(ctx context.Context) (*domain.SyncStats, error)
}

// DocumentSyncer applies file store changes to the vector index
type DocumentSyncer interface {
	// UpsertDocument (re)ingests a file unless it is already current
	UpsertDocument(ctx context.Context, meta *domain.FileMetadata) (*domain.SyncResult, error)

	// DeleteDocument removes a document from the index
	DeleteDocument(ctx context.Context, docID string) (*domain.SyncResult, error)

	// ScanFolder reconciles files changed within window under a folder
	ScanFolder(ctx context.Context, folderID string, window time.Duration) ([]*domain.SyncResult, error)
}
