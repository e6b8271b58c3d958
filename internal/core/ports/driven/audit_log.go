package driven

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// AuditLog is the append-only retrieval audit trail (PostgreSQL)
type AuditLog interface {
	// Append writes a record. Records are never updated.
	Append(ctx context.Context, record *domain.AuditRecord) error

	// ListByUser returns a user's most recent records
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditRecord, error)
}
