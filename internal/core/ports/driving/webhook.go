package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// ChannelRegistry manages push-notification channels
type ChannelRegistry interface {
	// Create registers a new channel for a folder, replacing any active one
	Create(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error)

	// WatchTree ensures rootFolderID and every folder beneath it has a live
	// channel. Watches only report direct children, so nested folders need
	// their own channel.
	WatchTree(ctx context.Context, rootFolderID, webhookURL string) (*domain.WatchTreeReport, error)

	// ResolveFolder maps an inbound channel id to the folder it watches
	ResolveFolder(ctx context.Context, channelID string) (string, error)

	// RenewExpiring replaces active channels expiring within threshold
	RenewExpiring(ctx context.Context, threshold time.Duration) (*domain.RenewalReport, error)

	// Get retrieves a channel by channel id
	Get(ctx context.Context, channelID string) (*domain.WebhookChannel, error)

	// GetActiveForFolder retrieves the active channel of a folder
	GetActiveForFolder(ctx context.Context, folderID string) (*domain.WebhookChannel, error)

	// ListActive lists active channels
	ListActive(ctx context.Context) ([]*domain.WebhookChannel, error)

	// Stop stops a channel at the file store and deactivates it
	Stop(ctx context.Context, channelID string) error

	// Delete removes a channel record
	Delete(ctx context.Context, channelID string) error
}
