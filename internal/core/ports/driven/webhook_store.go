package driven

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// ChannelStore handles webhook channel persistence (PostgreSQL)
type ChannelStore interface {
	// Activate stores channel as the only active channel of its folder. Every
	// other active channel of the folder is deactivated in the same
	// transaction, and activations of one folder are serialised, so
	// overlapping calls always leave exactly one active channel.
	// Returns the number of channels deactivated.
	Activate(ctx context.Context, channel *domain.WebhookChannel) (int, error)

	// Get retrieves a channel by its channel id (any status)
	Get(ctx context.Context, channelID string) (*domain.WebhookChannel, error)

	// GetActiveByFolder retrieves the active channel for a folder
	GetActiveByFolder(ctx context.Context, folderID string) (*domain.WebhookChannel, error)

	// ListActive retrieves all active channels
	ListActive(ctx context.Context) ([]*domain.WebhookChannel, error)

	// ListExpiring retrieves active channels expiring at or before the given epoch ms
	ListExpiring(ctx context.Context, beforeMs int64) ([]*domain.WebhookChannel, error)

	// Deactivate marks one channel inactive
	Deactivate(ctx context.Context, channelID string) error

	// Delete removes a channel record
	Delete(ctx context.Context, channelID string) error
}
