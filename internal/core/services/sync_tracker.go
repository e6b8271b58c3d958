package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.SyncStateTracker = (*SyncStateTracker)(nil)

// SyncStateTracker persists per-document sync records and answers staleness
// questions. The decision rules live on domain.DocumentSyncRecord.
type SyncStateTracker struct {
	store  driven.SyncRecordStore
	logger *slog.Logger
}

// SyncStateTrackerConfig holds dependencies for SyncStateTracker.
type SyncStateTrackerConfig struct {
	Store  driven.SyncRecordStore
	Logger *slog.Logger
}

// NewSyncStateTracker creates a new sync state tracker.
func NewSyncStateTracker(cfg SyncStateTrackerConfig) *SyncStateTracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncStateTracker{
		store:  cfg.Store,
		logger: logger,
	}
}

// load returns the record for docID, or nil if it was never tracked
func (t *SyncStateTracker) load(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error) {
	record, err := t.store.Get(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync record %s: %w", docID, err)
	}
	return record, nil
}

// NeedsSync reports whether a document observed at modifiedAt must be ingested.
// Untracked documents always need sync.
func (t *SyncStateTracker) NeedsSync(ctx context.Context, docID string, modifiedAt time.Time) (bool, error) {
	record, err := t.load(ctx, docID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return true, nil
	}
	return record.NeedsSync(modifiedAt), nil
}

// Track records an observation of a document. The first observation creates a
// PENDING record; later ones refresh the name and move the record back to
// PENDING. DELETED records are returned untouched.
func (t *SyncStateTracker) Track(ctx context.Context, docID, name string, modifiedAt time.Time) (*domain.DocumentSyncRecord, error) {
	record, err := t.load(ctx, docID)
	if err != nil {
		return nil, err
	}

	switch {
	case record == nil:
		record = domain.NewDocumentSyncRecord(docID, name, modifiedAt)
	case record.Status == domain.SyncStatusDeleted:
		return record, nil
	default:
		record.Observe(name)
		record.Status = domain.SyncStatusPending
	}

	if err := t.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save sync record %s: %w", docID, err)
	}
	return record, nil
}

// MarkSynced records a successful ingestion of the version modified at modifiedAt
func (t *SyncStateTracker) MarkSynced(ctx context.Context, docID string, modifiedAt time.Time) error {
	return t.mutate(ctx, docID, func(r *domain.DocumentSyncRecord) { r.MarkSynced(modifiedAt) })
}

// MarkFailed records a failed ingestion attempt
func (t *SyncStateTracker) MarkFailed(ctx context.Context, docID, reason string) error {
	return t.mutate(ctx, docID, func(r *domain.DocumentSyncRecord) { r.MarkFailed(reason) })
}

// mutate applies fn to the record, creating it first if the document was
// never tracked
func (t *SyncStateTracker) mutate(ctx context.Context, docID string, fn func(*domain.DocumentSyncRecord)) error {
	record, err := t.load(ctx, docID)
	if err != nil {
		return err
	}
	if record == nil {
		record = domain.NewDocumentSyncRecord(docID, "", time.Time{})
	}
	if record.Status == domain.SyncStatusDeleted {
		t.logger.Debug("ignoring update of deleted document", "doc_id", docID)
		return nil
	}
	fn(record)
	if err := t.store.Save(ctx, record); err != nil {
		return fmt.Errorf("save sync record %s: %w", docID, err)
	}
	return nil
}

// MarkDeleted moves a document's record to DELETED. Untracked documents are
// not an error.
func (t *SyncStateTracker) MarkDeleted(ctx context.Context, docID string) error {
	record, err := t.load(ctx, docID)
	if err != nil {
		return err
	}
	if record == nil {
		t.logger.Info("no sync record for deleted document", "doc_id", docID)
		return nil
	}
	record.MarkDeleted()
	if err := t.store.Save(ctx, record); err != nil {
		return fmt.Errorf("save sync record %s: %w", docID, err)
	}
	return nil
}

// Get returns the record for a document
func (t *SyncStateTracker) Get(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error) {
	return t.store.Get(ctx, docID)
}

// ListByStatus returns records in a status, most recently updated first
func (t *SyncStateTracker) ListByStatus(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput)
	}
	return t.store.ListByStatus(ctx, status, limit)
}

// Stats returns record counts by status
func (t *SyncStateTracker) Stats(ctx context.Context) (*domain.SyncStats, error) {
	counts, err := t.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sync records: %w", err)
	}
	stats := &domain.SyncStats{}
	for status, n := range counts {
		stats.Add(status, n)
	}
	return stats, nil
}
