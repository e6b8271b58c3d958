package driven

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// TaskQueue carries notification, scan and renewal tasks between the API and
// the workers. Delivery is at-least-once: a task that is dequeued but never
// acked is handed out again.
type TaskQueue interface {
	// Enqueue stores task. A future ScheduledFor delays delivery.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout blocks for up to timeout seconds. A nil task with a
	// nil error means nothing was due.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	Ack(ctx context.Context, taskID string) error

	// Nack records reason and reschedules with backoff until MaxAttempts,
	// after which the task is marked failed.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask returns domain.ErrNotFound for unknown or expired ids.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Stats(ctx context.Context) (*QueueStats, error)

	Ping(ctx context.Context) error
	Close() error
}

// QueueStats is a point-in-time view of queue depth
type QueueStats struct {
	PendingCount    int64 `json:"pending_count" example:"3"`
	ProcessingCount int64 `json:"processing_count" example:"1"`
}
