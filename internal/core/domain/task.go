package domain

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeProcessNotification processes one accepted change notification
	TaskTypeProcessNotification TaskType = "process_notification"
	// TaskTypeScanFolder runs a reconciliation scan over a folder
	TaskTypeScanFolder TaskType = "scan_folder"
	// TaskTypeRenewChannels renews webhook channels close to expiry
	TaskTypeRenewChannels TaskType = "renew_channels"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For process_notification: the change event fields
	// For scan_folder: {"folder_id": "...", "window_minutes": "30"}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	// Default is 0, range is -100 to 100
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		Priority:     0,
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewNotificationTask wraps an accepted change event in a task.
// The shared-secret token is never written to the queue.
func NewNotificationTask(event *ChangeEvent) *Task {
	task := NewTask(TaskTypeProcessNotification, map[string]string{
		"channel_id":     event.ChannelID,
		"resource_state": string(event.ResourceState),
		"resource_id":    event.ResourceID,
		"message_number": event.MessageNumber,
		"changed":        event.Changed,
	})
	// Notification processing retries internally; a second queue-level attempt
	// only covers worker crashes.
	task.MaxAttempts = 2
	return task
}

// NewScanFolderTask creates a task to reconcile a folder over a trailing window
func NewScanFolderTask(folderID string, window time.Duration) *Task {
	return NewTask(TaskTypeScanFolder, map[string]string{
		"folder_id":      folderID,
		"window_minutes": strconv.Itoa(int(window / time.Minute)),
	})
}

// NewRenewChannelsTask creates a task renewing channels that expire within threshold
func NewRenewChannelsTask(threshold time.Duration) *Task {
	task := NewTask(TaskTypeRenewChannels, map[string]string{
		"threshold_minutes": strconv.Itoa(int(threshold / time.Minute)),
	})
	task.Priority = 10
	return task
}

// ChangeEvent rebuilds the change event carried by a process_notification task
func (t *Task) ChangeEvent() *ChangeEvent {
	if t.Payload == nil {
		return &ChangeEvent{}
	}
	return &ChangeEvent{
		ChannelID:     t.Payload["channel_id"],
		ResourceState: ResourceState(t.Payload["resource_state"]),
		ResourceID:    t.Payload["resource_id"],
		MessageNumber: t.Payload["message_number"],
		Changed:       t.Payload["changed"],
	}
}

// FolderID extracts the folder_id from the payload (for scan_folder tasks)
func (t *Task) FolderID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["folder_id"]
}

// ScanWindow extracts the scan window, falling back to def
func (t *Task) ScanWindow(def time.Duration) time.Duration {
	return t.minutes("window_minutes", def)
}

// RenewThreshold extracts the renewal threshold, falling back to def
func (t *Task) RenewThreshold(def time.Duration) time.Duration {
	return t.minutes("threshold_minutes", def)
}

func (t *Task) minutes(key string, def time.Duration) time.Duration {
	if t.Payload == nil {
		return def
	}
	m, err := strconv.Atoi(t.Payload[key])
	if err != nil || m <= 0 {
		return def
	}
	return time.Duration(m) * time.Minute
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute // Cap at 5 minutes
	}
	t.ScheduledFor = now.Add(backoff)
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ItemsCount  int           `json:"items_count,omitempty"`  // e.g., documents synced
	ErrorsCount int           `json:"errors_count,omitempty"` // e.g., documents failed
}
