package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

const renewalLockName = "channel-renewal"

// ChannelRenewer periodically replaces webhook channels that are close to
// expiry.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance renews per tick. Renewal skips channels that are no longer active,
// so overlapping passes are harmless.
type ChannelRenewer struct {
	registry driving.ChannelRegistry
	lock     driven.DistributedLock
	logger   *slog.Logger

	// Internal state
	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	interval  time.Duration
	threshold time.Duration

	lockTTL time.Duration
}

// ChannelRenewerConfig holds configuration for the renewer.
type ChannelRenewerConfig struct {
	Registry  driving.ChannelRegistry
	Lock      driven.DistributedLock // Optional: skip ticks another instance is handling
	Logger    *slog.Logger
	Interval  time.Duration // How often to check for expiring channels (default: 1h)
	Threshold time.Duration // Renew channels expiring within this window (default: 6h)
	LockTTL   time.Duration // TTL for the distributed lock (default: 10m)
}

// NewChannelRenewer creates a new channel renewer.
func NewChannelRenewer(cfg ChannelRenewerConfig) *ChannelRenewer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 6 * time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 10 * time.Minute
	}

	return &ChannelRenewer{
		registry:  cfg.Registry,
		lock:      cfg.Lock,
		logger:    logger,
		interval:  interval,
		threshold: threshold,
		lockTTL:   lockTTL,
	}
}

// Start begins the renewal loop.
// It runs until Stop is called or context is cancelled.
func (r *ChannelRenewer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	r.logger.Info("channel renewer starting", "interval", r.interval, "threshold", r.threshold)

	go r.run(ctx)

	return nil
}

// Stop gracefully stops the renewer.
func (r *ChannelRenewer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.logger.Info("channel renewer stopped")
}

// run is the main renewal loop.
func (r *ChannelRenewer) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("channel renewer context cancelled")
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single renewal pass. It returns false when the pass was
// skipped because another instance holds the lock.
func (r *ChannelRenewer) RunOnce(ctx context.Context) bool {
	if r.lock != nil {
		acquired, err := r.lock.Acquire(ctx, renewalLockName, r.lockTTL)
		switch {
		case err != nil:
			// Renewal is idempotent, so a broken lock backend is not fatal
			r.logger.Warn("failed to acquire renewal lock, renewing anyway", "error", err)
		case !acquired:
			r.logger.Debug("renewal lock held by another instance, skipping cycle")
			return false
		default:
			defer func() {
				if err := r.lock.Release(ctx, renewalLockName); err != nil {
					r.logger.Warn("failed to release renewal lock", "error", err)
				}
			}()
		}
	}

	report, err := r.registry.RenewExpiring(ctx, r.threshold)
	if err != nil {
		r.logger.Error("channel renewal pass failed", "error", err)
		return true
	}
	if report.Failed > 0 {
		r.logger.Warn("some channels could not be renewed", "failed", report.Failed, "errors", report.Errors)
	}
	return true
}

// Threshold returns the renewal window
func (r *ChannelRenewer) Threshold() time.Duration {
	return r.threshold
}
