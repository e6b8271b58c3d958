package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncRecordStore = (*SyncRecordStore)(nil)

// SyncRecordStore implements driven.SyncRecordStore using PostgreSQL
type SyncRecordStore struct {
	db *DB
}

// NewSyncRecordStore creates a new SyncRecordStore
func NewSyncRecordStore(db *DB) *SyncRecordStore {
	return &SyncRecordStore{db: db}
}

const syncRecordColumns = `source_doc_id, source_doc_name, last_modified_at, last_synced_at,
	status, error_message, retry_count, created_at, updated_at`

// Save creates or updates a record keyed by source document id
func (s *SyncRecordStore) Save(ctx context.Context, record *domain.DocumentSyncRecord) error {
	query := `
		INSERT INTO sync_records (` + syncRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_doc_id) DO UPDATE SET
			source_doc_name = EXCLUDED.source_doc_name,
			last_modified_at = EXCLUDED.last_modified_at,
			last_synced_at = EXCLUDED.last_synced_at,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			retry_count = EXCLUDED.retry_count,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		record.SourceDocID,
		record.SourceDocName,
		NullTime(record.LastModifiedAt),
		NullTime(record.LastSyncedAt),
		string(record.Status),
		record.ErrorMessage,
		record.RetryCount,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sync record: %w", err)
	}
	return nil
}

// Get retrieves the record for a source document
func (s *SyncRecordStore) Get(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + ` FROM sync_records WHERE source_doc_id = $1`

	record, err := scanSyncRecord(s.db.QueryRowContext(ctx, query, docID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query sync record: %w", err)
	}
	return record, nil
}

// ListByStatus retrieves records with the given status, most recently updated first
func (s *SyncRecordStore) ListByStatus(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error) {
	query := `
		SELECT ` + syncRecordColumns + `
		FROM sync_records
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query sync records: %w", err)
	}
	defer rows.Close()

	var records []*domain.DocumentSyncRecord
	for rows.Next() {
		record, err := scanSyncRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountByStatus returns the number of records per status
func (s *SyncRecordStore) CountByStatus(ctx context.Context) (map[domain.SyncStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sync records: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.SyncStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncRecord(row rowScanner) (*domain.DocumentSyncRecord, error) {
	var r domain.DocumentSyncRecord
	var lastModified, lastSynced sql.NullTime
	var status string

	err := row.Scan(
		&r.SourceDocID,
		&r.SourceDocName,
		&lastModified,
		&lastSynced,
		&status,
		&r.ErrorMessage,
		&r.RetryCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.SyncStatus(status)
	r.LastModifiedAt = TimePtr(lastModified)
	r.LastSyncedAt = TimePtr(lastSynced)
	return &r, nil
}
