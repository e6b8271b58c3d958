package driven

import (
	"context"
)

// EmbeddingService turns chunk text and retrieval queries into vectors.
// Ingestion and retrieval must use the same model, or similarity scores are meaningless.
type EmbeddingService interface {
	// Embed returns one vector per chunk text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a sanitized retrieval query. Providers with separate
	// document and query task types use the query one here.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions is the vector size; qdrant and vespa collections are created with it
	Dimensions() int

	Model() string

	HealthCheck(ctx context.Context) error

	Close() error
}
