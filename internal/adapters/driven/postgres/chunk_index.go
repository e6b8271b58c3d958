package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*ChunkIndex)(nil)

// ChunkIndex implements driven.VectorIndex on the drive_chunks table with pgvector.
// Similarity is cosine; Score is 1 - cosine distance.
type ChunkIndex struct {
	db *DB
}

// NewChunkIndex creates a pgvector-backed index
func NewChunkIndex(db *DB) *ChunkIndex {
	return &ChunkIndex{db: db}
}

// accessClause renders filter as a SQL predicate whose placeholders start at $next
func accessClause(filter domain.AccessFilter, next int) (string, []any, bool) {
	switch filter.Kind {
	case domain.FilterNonPIOnly:
		return "is_pi = FALSE", nil, true
	case domain.FilterNonPIOrOwned:
		if filter.OwnerUID == "" {
			return "is_pi = FALSE", nil, true
		}
		return "(is_pi = FALSE OR (is_pi = TRUE AND owner_uid = $" + strconv.Itoa(next) + "))",
			[]any{filter.OwnerUID}, true
	default:
		return "", nil, false
	}
}

// Search returns the chunks closest to embedding that pass filter
func (x *ChunkIndex) Search(ctx context.Context, embedding []float32, filter domain.AccessFilter, limit int) ([]*domain.ScoredChunk, error) {
	clause, args, ok := accessClause(filter, 3)
	if !ok || limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT chunk_id, source_doc_id, document_name, page, position, text,
			is_pi, owner_uid, roles_allowed, 1 - (embedding <=> $1) AS score
		FROM drive_chunks
		WHERE embedding IS NOT NULL
			AND vector_dims(embedding) = vector_dims($1)
			AND ` + clause + `
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	params := append([]any{pgvector.NewVector(embedding), limit}, args...)
	rows, err := x.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []*domain.ScoredChunk
	for rows.Next() {
		var c domain.IndexedChunk
		var owner sql.NullString
		var roles []string
		var score float64
		if err := rows.Scan(&c.ChunkID, &c.SourceDocID, &c.DocumentName, &c.Page, &c.Position, &c.Text,
			&c.Access.IsPI, &owner, pq.Array(&roles), &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Access.OwnerUID = StringPtr(owner)
		c.Access.RolesAllowed = roles
		results = append(results, &domain.ScoredChunk{Chunk: &c, Score: score})
	}
	return results, rows.Err()
}

// Upsert writes chunks in one transaction, replacing rows with the same chunk id
func (x *ChunkIndex) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return x.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO drive_chunks (chunk_id, source_doc_id, document_name, page, position, text,
				embedding, is_pi, owner_uid, roles_allowed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (chunk_id) DO UPDATE SET
				source_doc_id = EXCLUDED.source_doc_id,
				document_name = EXCLUDED.document_name,
				page = EXCLUDED.page,
				position = EXCLUDED.position,
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding,
				is_pi = EXCLUDED.is_pi,
				owner_uid = EXCLUDED.owner_uid,
				roles_allowed = EXCLUDED.roles_allowed`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			var vec any
			if len(c.Embedding) > 0 {
				vec = pgvector.NewVector(c.Embedding)
			}
			if _, err := stmt.ExecContext(ctx,
				c.ChunkID, c.SourceDocID, c.DocumentName, c.Page, c.Position, c.Text,
				vec, c.Access.IsPI, NullString(c.Access.OwnerUID), pq.Array(c.Access.RolesAllowed),
			); err != nil {
				return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
			}
		}
		return nil
	})
}

// DeleteByDocument removes every chunk of a source document
func (x *ChunkIndex) DeleteByDocument(ctx context.Context, docID string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM drive_chunks WHERE source_doc_id = $1`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// CountByDocument returns the number of chunks stored for a source document
func (x *ChunkIndex) CountByDocument(ctx context.Context, docID string) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drive_chunks WHERE source_doc_id = $1`, docID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database is reachable
func (x *ChunkIndex) HealthCheck(ctx context.Context) error {
	return x.db.PingContext(ctx)
}
