package driving

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// NotificationProcessor turns inbound change events into index work
type NotificationProcessor interface {
	// Accept verifies and dispatches an event. It never fails; the outcome
	// is informational.
	Accept(ctx context.Context, event *domain.ChangeEvent) domain.NotificationOutcome

	// Process runs the background part for an accepted event
	Process(ctx context.Context, event *domain.ChangeEvent) error
}
