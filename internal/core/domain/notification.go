package domain

import "strings"

// ResourceState is the kind of change a push notification reports
type ResourceState string

const (
	ResourceStateSync   ResourceState = "sync" // handshake sent when a channel is created
	ResourceStateAdd    ResourceState = "add"
	ResourceStateUpdate ResourceState = "update"
	ResourceStateRemove ResourceState = "remove"
	ResourceStateTrash  ResourceState = "trash"
)

// IsDeletion reports whether the state routes to the deletion handler
func (s ResourceState) IsDeletion() bool {
	return s == ResourceStateRemove || s == ResourceStateTrash
}

// IsUpsert reports whether the state routes to the upsert handler
func (s ResourceState) IsUpsert() bool {
	return s == ResourceStateAdd || s == ResourceStateUpdate
}

// ChangedChildren is the changed-flag value signalling a folder's children changed
const ChangedChildren = "children"

// ChangeEvent is one inbound push notification
type ChangeEvent struct {
	ChannelID     string        `json:"channel_id"`
	ResourceState ResourceState `json:"resource_state"`
	ResourceID    string        `json:"resource_id"`
	MessageNumber string        `json:"message_number"`
	Changed       string        `json:"changed,omitempty"`
	Token         string        `json:"-"`
}

// IsContainerMutation reports whether the event describes a folder-level change
// rather than one identifiable resource. Changed is a comma-separated list,
// e.g. "content,children".
func (e *ChangeEvent) IsContainerMutation() bool {
	for _, part := range strings.Split(e.Changed, ",") {
		if strings.EqualFold(strings.TrimSpace(part), ChangedChildren) {
			return true
		}
	}
	return false
}

// EffectiveState returns the state the processor dispatches on. A container
// mutation is always treated as an update.
func (e *ChangeEvent) EffectiveState() ResourceState {
	if e.IsContainerMutation() {
		return ResourceStateUpdate
	}
	return e.ResourceState
}

// NotificationState is a step in the processing of one event
type NotificationState string

const (
	NotificationReceived   NotificationState = "RECEIVED"
	NotificationVerified   NotificationState = "VERIFIED"
	NotificationResolved   NotificationState = "RESOLVED"
	NotificationFolderScan NotificationState = "FOLDER_SCAN_FALLBACK"
	NotificationDispatched NotificationState = "DISPATCHED"
	NotificationCompleted  NotificationState = "COMPLETED"
	NotificationFailed     NotificationState = "FAILED"
)

// NotificationOutcome is the synchronous result of accepting an event.
// Callers acknowledge success regardless of the outcome.
type NotificationOutcome string

const (
	OutcomeDispatched NotificationOutcome = "dispatched"
	OutcomeHandshake  NotificationOutcome = "handshake"
	OutcomeRejected   NotificationOutcome = "rejected"
	OutcomeDuplicate  NotificationOutcome = "duplicate"
	OutcomeIgnored    NotificationOutcome = "ignored"
)
