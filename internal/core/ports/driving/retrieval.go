package driving

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// RetrievalService answers questions against the index
type RetrievalService interface {
	// Retrieve answers a question. Collaborator failures degrade to a fixed
	// answer; the error is reserved for invalid requests.
	Retrieve(ctx context.Context, req *domain.RetrievalRequest) (*domain.RetrievalResponse, error)
}
