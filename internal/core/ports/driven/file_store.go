package driven

import (
	"context"
	"io"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// FileStore is the remote document store (Google Drive)
type FileStore interface {
	// Classify looks a resource up once and reports whether it is a file, a
	// folder, or missing. Missing resources return (ResourceKindMissing, nil, nil);
	// err is reserved for failures of the lookup itself.
	Classify(ctx context.Context, resourceID string) (domain.ResourceKind, *domain.FileMetadata, error)

	// GetMetadata retrieves metadata for a resource.
	// Returns domain.ErrNotFound if the resource does not exist.
	GetMetadata(ctx context.Context, resourceID string) (*domain.FileMetadata, error)

	// ListChildren lists non-trashed direct children of a folder. When since is
	// non-zero only children modified or created after since are returned, plus
	// every subfolder so callers can recurse.
	ListChildren(ctx context.Context, folderID string, since time.Time) ([]*domain.FileMetadata, error)

	// Download writes the content of a file to w
	Download(ctx context.Context, fileID string, w io.Writer) error

	// Watch registers a push-notification channel on a folder
	Watch(ctx context.Context, req domain.WatchRequest) (*domain.WatchRegistration, error)

	// StopWatch stops a channel at the file store
	StopWatch(ctx context.Context, channelID, resourceID string) error
}
