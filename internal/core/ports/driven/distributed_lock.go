package driven

import (
	"context"
	"time"
)

// DistributedLock keeps two instances from renewing the same channels in the
// same tick. Losing the lock only costs a skipped tick; renewal itself is
// idempotent.
type DistributedLock interface {
	// Acquire reports false, without error, when another holder has name.
	// The lock lapses on its own after ttl.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release is a no-op for locks that already lapsed.
	Release(ctx context.Context, name string) error

	Ping(ctx context.Context) error
}
