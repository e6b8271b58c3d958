package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.NotificationProcessor = (*NotificationProcessor)(nil)

const (
	// DefaultPreDelay is the wait before looking up an added or updated
	// resource, giving the file store time to finish processing uploads
	DefaultPreDelay = 5 * time.Second
	// DefaultDedupeTTL is how long a (channel, message number) pair is remembered
	DefaultDedupeTTL = 10 * time.Minute
)

// NotificationProcessor turns push notifications into index work.
// Accept runs on the request path and only verifies and dispatches. Process
// does the work in the background.
type NotificationProcessor struct {
	registry   driving.ChannelRegistry
	syncer     driving.DocumentSyncer
	files      driven.FileStore
	kv         driven.KeyValueStore
	queue      driven.TaskQueue
	logger     *slog.Logger
	token      string
	retry      RetryPolicy
	preDelay   time.Duration
	scanWindow time.Duration
	dedupeTTL  time.Duration

	// In-process dispatch when no queue is configured
	wg sync.WaitGroup
}

// NotificationProcessorConfig holds dependencies and settings for the processor.
type NotificationProcessorConfig struct {
	Registry driving.ChannelRegistry
	Syncer   driving.DocumentSyncer
	Files    driven.FileStore
	KV       driven.KeyValueStore // Optional: de-duplicates redelivered notifications
	Queue    driven.TaskQueue     // Optional: background workers; goroutines otherwise
	Logger   *slog.Logger
	Token    string // shared secret every notification must carry

	Retry      *RetryPolicy   // default: DefaultRetryPolicy()
	PreDelay   *time.Duration // default: 5s
	ScanWindow time.Duration // default: 30m
	DedupeTTL  time.Duration // default: 10m
}

// NewNotificationProcessor creates a new notification processor.
func NewNotificationProcessor(cfg NotificationProcessorConfig) *NotificationProcessor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	preDelay := DefaultPreDelay
	if cfg.PreDelay != nil {
		preDelay = *cfg.PreDelay
	}
	scanWindow := cfg.ScanWindow
	if scanWindow <= 0 {
		scanWindow = DefaultScanWindow
	}
	dedupeTTL := cfg.DedupeTTL
	if dedupeTTL <= 0 {
		dedupeTTL = DefaultDedupeTTL
	}
	return &NotificationProcessor{
		registry:   cfg.Registry,
		syncer:     cfg.Syncer,
		files:      cfg.Files,
		kv:         cfg.KV,
		queue:      cfg.Queue,
		logger:     logger,
		token:      cfg.Token,
		retry:      retry,
		preDelay:   preDelay,
		scanWindow: scanWindow,
		dedupeTTL:  dedupeTTL,
	}
}

// transition logs one state change of an event
func (p *NotificationProcessor) transition(event *domain.ChangeEvent, state domain.NotificationState, args ...any) {
	attrs := append([]any{
		"channel_id", event.ChannelID,
		"message_number", event.MessageNumber,
		"resource_state", event.ResourceState,
		"state", state,
	}, args...)
	switch state {
	case domain.NotificationFailed:
		p.logger.Error("notification", attrs...)
	case domain.NotificationCompleted, domain.NotificationFolderScan:
		p.logger.Info("notification", attrs...)
	default:
		p.logger.Debug("notification", attrs...)
	}
}

// Accept verifies an event and hands it to background processing. The
// outcome is informational; callers acknowledge every notification.
func (p *NotificationProcessor) Accept(ctx context.Context, event *domain.ChangeEvent) domain.NotificationOutcome {
	p.transition(event, domain.NotificationReceived)

	if subtle.ConstantTimeCompare([]byte(event.Token), []byte(p.token)) != 1 {
		p.logger.Warn("rejected notification with invalid token",
			"channel_id", event.ChannelID,
			"error", domain.ErrTokenMismatch,
		)
		return domain.OutcomeRejected
	}
	p.transition(event, domain.NotificationVerified)

	if event.ResourceState == domain.ResourceStateSync {
		p.logger.Info("channel handshake received", "channel_id", event.ChannelID)
		return domain.OutcomeHandshake
	}

	state := event.EffectiveState()
	if !state.IsDeletion() && !state.IsUpsert() {
		p.logger.Info("ignoring notification with unknown state", "channel_id", event.ChannelID, "resource_state", event.ResourceState)
		return domain.OutcomeIgnored
	}

	if p.isDuplicate(ctx, event) {
		p.logger.Debug("duplicate notification", "channel_id", event.ChannelID, "message_number", event.MessageNumber)
		return domain.OutcomeDuplicate
	}

	p.dispatch(ctx, event)
	return domain.OutcomeDispatched
}

// isDuplicate records the event's message number and reports whether it was
// already seen. Store errors let the event through.
func (p *NotificationProcessor) isDuplicate(ctx context.Context, event *domain.ChangeEvent) bool {
	if p.kv == nil || event.MessageNumber == "" {
		return false
	}
	key := fmt.Sprintf("notify:%s:%s", event.ChannelID, event.MessageNumber)
	fresh, err := p.kv.SetNX(ctx, key, string(event.ResourceState), p.dedupeTTL)
	if err != nil {
		p.logger.Warn("dedupe store unavailable", "channel_id", event.ChannelID, "error", err)
		return false
	}
	return !fresh
}

// dispatch enqueues the event, falling back to a goroutine when there is no
// queue or the queue rejects it
func (p *NotificationProcessor) dispatch(ctx context.Context, event *domain.ChangeEvent) {
	if p.queue != nil {
		task := domain.NewNotificationTask(event)
		err := p.queue.Enqueue(ctx, task)
		if err == nil {
			p.logger.Debug("notification queued", "channel_id", event.ChannelID, "task_id", task.ID)
			return
		}
		p.logger.Warn("failed to enqueue notification, processing in-process", "channel_id", event.ChannelID, "error", err)
	}

	bg := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.Process(bg, event)
	}()
}

// Wait blocks until in-process dispatches finish
func (p *NotificationProcessor) Wait() {
	p.wg.Wait()
}

// Process runs the background part of an event. Errors are logged and also
// returned so queue workers can record them.
func (p *NotificationProcessor) Process(ctx context.Context, event *domain.ChangeEvent) error {
	folderID, err := p.registry.ResolveFolder(ctx, event.ChannelID)
	if err != nil {
		p.transition(event, domain.NotificationFailed, "error", err)
		return fmt.Errorf("resolve channel %s: %w", event.ChannelID, err)
	}
	p.transition(event, domain.NotificationResolved, "folder_id", folderID)

	state := event.EffectiveState()
	switch {
	case event.IsContainerMutation():
		if err := p.sleep(ctx, p.preDelay); err != nil {
			p.transition(event, domain.NotificationFailed, "error", err)
			return err
		}
		err = p.scan(ctx, event, folderID)

	case state.IsDeletion():
		err = p.delete(ctx, event)

	case state.IsUpsert():
		err = p.upsert(ctx, event, folderID)

	default:
		p.logger.Info("ignoring notification with unknown state", "channel_id", event.ChannelID, "resource_state", event.ResourceState)
		return nil
	}

	if err != nil {
		p.transition(event, domain.NotificationFailed, "folder_id", folderID, "error", err)
		return err
	}
	p.transition(event, domain.NotificationCompleted, "folder_id", folderID)
	return nil
}

func (p *NotificationProcessor) delete(ctx context.Context, event *domain.ChangeEvent) error {
	if event.ResourceID == "" {
		return fmt.Errorf("deletion without resource id: %w", domain.ErrInvalidInput)
	}
	p.transition(event, domain.NotificationDispatched, "doc_id", event.ResourceID, "handler", "delete")
	_, err := p.syncer.DeleteDocument(ctx, event.ResourceID)
	return err
}

// upsert waits out the pre-delay, classifies the resource and routes it.
// A resource still missing after every retry is treated as a folder-level
// change and the channel's folder is scanned.
func (p *NotificationProcessor) upsert(ctx context.Context, event *domain.ChangeEvent, folderID string) error {
	if err := p.sleep(ctx, p.preDelay); err != nil {
		return err
	}

	kind, meta, attempts, err := p.classify(ctx, event.ResourceID)
	if err != nil {
		return fmt.Errorf("classify %s after %d attempts: %w", event.ResourceID, attempts, err)
	}

	switch kind {
	case domain.ResourceKindFile:
		if meta.Trashed {
			p.transition(event, domain.NotificationDispatched, "doc_id", meta.ID, "handler", "delete")
			_, err := p.syncer.DeleteDocument(ctx, meta.ID)
			return err
		}
		p.transition(event, domain.NotificationDispatched, "doc_id", meta.ID, "handler", "upsert")
		_, err := p.syncer.UpsertDocument(ctx, meta)
		return err

	case domain.ResourceKindFolder:
		return p.scan(ctx, event, meta.ID)

	default:
		p.logger.Info("resource not visible after retries, scanning channel folder",
			"channel_id", event.ChannelID,
			"resource_id", event.ResourceID,
			"attempts", attempts,
		)
		return p.scan(ctx, event, folderID)
	}
}

// classify looks the resource up, retrying while it is missing or the
// lookup fails
func (p *NotificationProcessor) classify(ctx context.Context, resourceID string) (domain.ResourceKind, *domain.FileMetadata, int, error) {
	if resourceID == "" {
		return domain.ResourceKindMissing, nil, 0, nil
	}

	kind := domain.ResourceKindMissing
	var meta *domain.FileMetadata

	attempts, _, err := p.retry.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		k, m, err := p.files.Classify(ctx, resourceID)
		if err != nil {
			p.logger.Debug("resource lookup failed", "resource_id", resourceID, "attempt", attempt, "error", err)
			return false, err
		}
		kind, meta = k, m
		if k == domain.ResourceKindMissing {
			p.logger.Debug("resource not visible yet", "resource_id", resourceID, "attempt", attempt)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return kind, nil, attempts, err
	}
	return kind, meta, attempts, nil
}

func (p *NotificationProcessor) scan(ctx context.Context, event *domain.ChangeEvent, folderID string) error {
	p.transition(event, domain.NotificationFolderScan, "folder_id", folderID, "window", p.scanWindow)
	p.transition(event, domain.NotificationDispatched, "folder_id", folderID, "handler", "scan")
	_, err := p.syncer.ScanFolder(ctx, folderID, p.scanWindow)
	return err
}

func (p *NotificationProcessor) sleep(ctx context.Context, d time.Duration) error {
	if p.retry.Sleep != nil {
		return p.retry.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}
