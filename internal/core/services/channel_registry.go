package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.ChannelRegistry = (*ChannelRegistry)(nil)

// DefaultChannelTTL is the lifetime requested for new watch channels
const DefaultChannelTTL = 7 * 24 * time.Hour

// ChannelRegistry manages the lifecycle of push-notification channels.
// At most one channel per folder is active at any time.
type ChannelRegistry struct {
	store      driven.ChannelStore
	files      driven.FileStore
	logger     *slog.Logger
	prefix     string
	token      string
	webhookURL string
	ttl        time.Duration
	now        func() time.Time
	newSuffix  func() string
}

// ChannelRegistryConfig holds dependencies and settings for ChannelRegistry.
type ChannelRegistryConfig struct {
	Store      driven.ChannelStore
	Files      driven.FileStore
	Logger     *slog.Logger
	Prefix     string        // channel id prefix (default "sdw")
	Token      string        // shared secret echoed back on every notification
	WebhookURL string        // default callback URL, required for renewal
	TTL        time.Duration // requested channel lifetime (default 7 days)
}

// NewChannelRegistry creates a new channel registry.
func NewChannelRegistry(cfg ChannelRegistryConfig) *ChannelRegistry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = domain.DefaultChannelPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultChannelTTL
	}
	return &ChannelRegistry{
		store:      cfg.Store,
		files:      cfg.Files,
		logger:     logger,
		prefix:     prefix,
		token:      cfg.Token,
		webhookURL: cfg.WebhookURL,
		ttl:        ttl,
		now:        time.Now,
		newSuffix:  func() string { return uuid.New().String()[:8] },
	}
}

// Create registers a new channel on folderID and makes it the folder's only
// active channel. An empty webhookURL falls back to the configured one.
// Nothing is persisted if the file store rejects the watch.
func (r *ChannelRegistry) Create(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error) {
	if folderID == "" {
		return nil, fmt.Errorf("folder id: %w", domain.ErrInvalidInput)
	}
	if webhookURL == "" {
		webhookURL = r.webhookURL
	}
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook url: %w", domain.ErrConfigMissing)
	}

	channelID := domain.EncodeChannelID(r.prefix, folderID, r.newSuffix())

	reg, err := r.files.Watch(ctx, domain.WatchRequest{
		ChannelID:  channelID,
		FolderID:   folderID,
		WebhookURL: webhookURL,
		Token:      r.token,
		TTL:        r.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("register watch on folder %s: %w", folderID, err)
	}

	now := r.now().UTC()
	channel := &domain.WebhookChannel{
		ID:         uuid.New().String(),
		ChannelID:  channelID,
		ResourceID: reg.ResourceID,
		FolderID:   folderID,
		WebhookURL: webhookURL,
		Expiration: reg.Expiration,
		Status:     domain.ChannelStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	n, err := r.store.Activate(ctx, channel)
	if err != nil {
		// The watch exists remotely but we have no record of it
		r.stopRemote(ctx, channelID, reg.ResourceID)
		return nil, fmt.Errorf("activate channel for folder %s: %w", folderID, err)
	}

	r.logger.Info("webhook channel created",
		"channel_id", channelID,
		"folder_id", folderID,
		"expires_at", channel.ExpiresAt(),
		"deactivated", n,
	)
	return channel, nil
}

// WatchTree walks the folder tree under rootFolderID breadth first and creates
// a channel for every folder, the root included, that lacks an unexpired
// active one. A failure on one folder is recorded and the walk continues;
// only a failure to list the root aborts it.
func (r *ChannelRegistry) WatchTree(ctx context.Context, rootFolderID, webhookURL string) (*domain.WatchTreeReport, error) {
	if rootFolderID == "" {
		return nil, fmt.Errorf("folder id: %w", domain.ErrInvalidInput)
	}

	report := &domain.WatchTreeReport{RootFolderID: rootFolderID}
	seen := map[string]bool{rootFolderID: true}
	queue := []string{rootFolderID}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		folderID := queue[0]
		queue = queue[1:]
		report.Folders++

		if err := r.ensureWatched(ctx, folderID, webhookURL, report); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", folderID, err))
			r.logger.Error("failed to watch folder", "folder_id", folderID, "error", err)
		}

		children, err := r.files.ListChildren(ctx, folderID, time.Time{})
		if err != nil {
			if folderID == rootFolderID {
				return nil, fmt.Errorf("list folder %s: %w", folderID, err)
			}
			report.Errors = append(report.Errors, fmt.Sprintf("%s: list: %v", folderID, err))
			r.logger.Warn("failed to list folder, subtree not watched", "folder_id", folderID, "error", err)
			continue
		}
		for _, child := range children {
			// folders with several parents are reached more than once
			if child.IsFolder() && !seen[child.ID] {
				seen[child.ID] = true
				queue = append(queue, child.ID)
			}
		}
	}

	r.logger.Info("folder tree watched",
		"root_folder_id", rootFolderID,
		"folders", report.Folders,
		"created", report.Created,
		"existing", report.Existing,
		"failed", report.Failed,
	)
	return report, nil
}

func (r *ChannelRegistry) ensureWatched(ctx context.Context, folderID, webhookURL string, report *domain.WatchTreeReport) error {
	channel, err := r.store.GetActiveByFolder(ctx, folderID)
	switch {
	case err == nil && !channel.ExpiresWithin(r.now(), 0):
		report.Existing++
		return nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("get active channel: %w", err)
	}
	if _, err := r.Create(ctx, folderID, webhookURL); err != nil {
		return err
	}
	report.Created++
	return nil
}

// ResolveFolder maps a channel id to its folder. An exact record wins.
// Otherwise the folder id is decoded from the channel id and accepted only
// when that folder currently has an active channel.
func (r *ChannelRegistry) ResolveFolder(ctx context.Context, channelID string) (string, error) {
	channel, err := r.store.Get(ctx, channelID)
	if err == nil {
		return channel.FolderID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("get channel %s: %w", channelID, err)
	}

	folderID, err := domain.DecodeChannelID(r.prefix, channelID)
	if err != nil {
		return "", fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
	}

	if _, err := r.store.GetActiveByFolder(ctx, folderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("channel %s: no active channel for folder %s: %w", channelID, folderID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("get active channel for folder %s: %w", folderID, err)
	}

	r.logger.Debug("channel resolved by decoded folder id", "channel_id", channelID, "folder_id", folderID)
	return folderID, nil
}

// RenewExpiring replaces every active channel expiring within threshold.
// Per-channel failures are collected in the report and do not stop the pass.
func (r *ChannelRegistry) RenewExpiring(ctx context.Context, threshold time.Duration) (*domain.RenewalReport, error) {
	now := r.now()
	expiring, err := r.store.ListExpiring(ctx, now.Add(threshold).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list expiring channels: %w", err)
	}

	report := &domain.RenewalReport{}
	for _, candidate := range expiring {
		report.Checked++

		renewed, err := r.renew(ctx, candidate.ChannelID, now, threshold)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", candidate.ChannelID, err))
			r.logger.Error("channel renewal failed", "channel_id", candidate.ChannelID, "folder_id", candidate.FolderID, "error", err)
		case renewed:
			report.Renewed++
		default:
			report.Skipped++
		}
	}

	if report.Checked > 0 {
		r.logger.Info("channel renewal pass complete",
			"checked", report.Checked,
			"renewed", report.Renewed,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report, nil
}

// renew replaces one channel. It re-reads the channel first so a pass racing
// with another instance skips channels that were already replaced.
func (r *ChannelRegistry) renew(ctx context.Context, channelID string, now time.Time, threshold time.Duration) (bool, error) {
	current, err := r.store.Get(ctx, channelID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reload channel: %w", err)
	}
	if !current.IsActive() || !current.ExpiresWithin(now, threshold) {
		r.logger.Debug("channel already renewed, skipping", "channel_id", channelID)
		return false, nil
	}

	webhookURL := current.WebhookURL
	if webhookURL == "" {
		webhookURL = r.webhookURL
	}
	if webhookURL == "" {
		r.logger.Warn("no webhook url configured, skipping channel renewal",
			"channel_id", channelID,
			"folder_id", current.FolderID,
			"error", domain.ErrConfigMissing,
		)
		return false, nil
	}

	replacement, err := r.Create(ctx, current.FolderID, webhookURL)
	if err != nil {
		return false, err
	}

	r.stopRemote(ctx, current.ChannelID, current.ResourceID)
	if err := r.store.Deactivate(ctx, current.ChannelID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("deactivate original: %w", err)
	}

	r.logger.Info("webhook channel renewed",
		"channel_id", replacement.ChannelID,
		"previous_channel_id", current.ChannelID,
		"folder_id", current.FolderID,
	)
	return true, nil
}

// stopRemote stops a watch at the file store. Failures are logged only: an
// unstopped channel simply expires.
func (r *ChannelRegistry) stopRemote(ctx context.Context, channelID, resourceID string) {
	if err := r.files.StopWatch(ctx, channelID, resourceID); err != nil {
		r.logger.Warn("failed to stop watch channel", "channel_id", channelID, "error", err)
	}
}

// Get returns a channel by its channel id
func (r *ChannelRegistry) Get(ctx context.Context, channelID string) (*domain.WebhookChannel, error) {
	return r.store.Get(ctx, channelID)
}

// GetActiveForFolder returns the active channel of a folder
func (r *ChannelRegistry) GetActiveForFolder(ctx context.Context, folderID string) (*domain.WebhookChannel, error) {
	return r.store.GetActiveByFolder(ctx, folderID)
}

// ListActive returns every active channel
func (r *ChannelRegistry) ListActive(ctx context.Context) ([]*domain.WebhookChannel, error) {
	return r.store.ListActive(ctx)
}

// Stop stops a channel at the file store and deactivates it
func (r *ChannelRegistry) Stop(ctx context.Context, channelID string) error {
	channel, err := r.store.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.IsActive() {
		r.stopRemote(ctx, channel.ChannelID, channel.ResourceID)
	}
	if err := r.store.Deactivate(ctx, channelID); err != nil {
		return fmt.Errorf("deactivate channel: %w", err)
	}
	r.logger.Info("webhook channel stopped", "channel_id", channelID, "folder_id", channel.FolderID)
	return nil
}

// Delete stops a channel if it is still active and removes its record
func (r *ChannelRegistry) Delete(ctx context.Context, channelID string) error {
	channel, err := r.store.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.IsActive() {
		r.stopRemote(ctx, channel.ChannelID, channel.ResourceID)
	}
	return r.store.Delete(ctx, channelID)
}
