package driven

import (
	"context"
	"io"
)

// ObjectArchive keeps a copy of every ingested source file (S3)
type ObjectArchive interface {
	// Put stores the object under key
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// Delete removes the object; missing objects are not an error
	Delete(ctx context.Context, key string) error
}
