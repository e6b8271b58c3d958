package driven

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// VectorIndex stores chunk embeddings with access metadata and answers
// filtered similarity queries (Vespa, Qdrant or pgvector)
type VectorIndex interface {
	// Search returns up to limit chunks matching filter, most similar first.
	// A FilterDenyAll filter must return no results.
	Search(ctx context.Context, embedding []float32, filter domain.AccessFilter, limit int) ([]*domain.ScoredChunk, error)

	// Upsert writes chunks, replacing any with the same ChunkID
	Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error

	// DeleteByDocument removes every chunk of a source document
	DeleteByDocument(ctx context.Context, docID string) error

	// CountByDocument returns the number of chunks held for a source document
	CountByDocument(ctx context.Context, docID string) (int, error)

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error
}
