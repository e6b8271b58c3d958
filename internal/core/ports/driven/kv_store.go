package driven

import (
	"context"
	"time"
)

// KeyValueStore is a shared key-value store with per-key expiry (Redis).
// It replaces process-local state that must survive multiple instances.
type KeyValueStore interface {
	// SetNX stores value under key if absent. Returns false if the key existed.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value for key, or domain.ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key; missing keys are not an error
	Delete(ctx context.Context, key string) error
}
