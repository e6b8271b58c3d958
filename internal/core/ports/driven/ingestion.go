package driven

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// IngestionService turns a downloaded file into embedded, access-tagged chunks
type IngestionService interface {
	// Ingest parses, chunks and embeds the file at content.Path. Every returned
	// chunk carries content.Access. Zero chunks is not an error here; callers decide.
	Ingest(ctx context.Context, content *domain.DocumentContent) ([]*domain.IndexedChunk, error)
}
