package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuditLog = (*AuditLog)(nil)

// AuditLog implements driven.AuditLog on an insert-only table
type AuditLog struct {
	db *DB
}

// NewAuditLog creates a new AuditLog
func NewAuditLog(db *DB) *AuditLog {
	return &AuditLog{db: db}
}

// Append writes a record. A repeated audit id is rejected, never overwritten.
func (a *AuditLog) Append(ctx context.Context, record *domain.AuditRecord) error {
	ids, err := json.Marshal(record.ChunkIDsReturned)
	if err != nil {
		return fmt.Errorf("marshal chunk ids: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, user_id, user_role, sanitized_query,
			chunk_ids_returned, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.AuditID,
		record.UserID,
		string(record.UserRole),
		record.SanitizedQuery,
		ids,
		record.ProcessingTimeMs,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListByUser returns a user's most recent records
func (a *AuditLog) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT audit_id, user_id, user_role, sanitized_query,
			chunk_ids_returned, processing_time_ms, created_at
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var r domain.AuditRecord
		var role string
		var ids []byte
		if err := rows.Scan(&r.AuditID, &r.UserID, &role, &r.SanitizedQuery, &ids, &r.ProcessingTimeMs, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.UserRole = domain.Role(role)
		if err := json.Unmarshal(ids, &r.ChunkIDsReturned); err != nil {
			return nil, fmt.Errorf("unmarshal chunk ids: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
