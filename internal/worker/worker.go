package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Background loops started and stopped alongside the worker (the channel renewer)
type Background interface {
	Start(ctx context.Context) error
	Stop()
}

// Worker processes tasks from the task queue: accepted change notifications,
// folder scans and channel renewal passes.
type Worker struct {
	taskQueue     driven.TaskQueue
	notifications driving.NotificationProcessor
	syncer        driving.DocumentSyncer
	channels      driving.ChannelRegistry
	background    Background
	logger        *slog.Logger

	// Configuration
	concurrency      int
	dequeueTimeout   int // seconds
	scanWindow       time.Duration
	renewalThreshold time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue        driven.TaskQueue
	Notifications    driving.NotificationProcessor
	Syncer           driving.DocumentSyncer
	Channels         driving.ChannelRegistry
	Background       Background // Optional: started with the worker
	Logger           *slog.Logger
	Concurrency      int           // Number of concurrent task processors
	DequeueTimeout   int           // Seconds to wait for a task before checking again
	ScanWindow       time.Duration // Window for scan tasks without one (default: 10m)
	RenewalThreshold time.Duration // Threshold for renewal tasks without one (default: 24h)
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	scanWindow := cfg.ScanWindow
	if scanWindow <= 0 {
		scanWindow = 10 * time.Minute
	}

	threshold := cfg.RenewalThreshold
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}

	return &Worker{
		taskQueue:        cfg.TaskQueue,
		notifications:    cfg.Notifications,
		syncer:           cfg.Syncer,
		channels:         cfg.Channels,
		background:       cfg.Background,
		logger:           logger,
		concurrency:      concurrency,
		dequeueTimeout:   dequeueTimeout,
		scanWindow:       scanWindow,
		renewalThreshold: threshold,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.background != nil {
		if err := w.background.Start(ctx); err != nil {
			w.logger.Error("failed to start background loop", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.background != nil {
		w.background.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Debug("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeProcessNotification:
		err = w.handleNotification(ctx, task)
	case domain.TaskTypeScanFolder:
		err = w.handleScanFolder(ctx, task)
	case domain.TaskTypeRenewChannels:
		err = w.handleRenewChannels(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleNotification runs the background part of an accepted change event.
func (w *Worker) handleNotification(ctx context.Context, task *domain.Task) error {
	event := task.ChangeEvent()
	if event.ChannelID == "" {
		return fmt.Errorf("channel_id not found in task payload")
	}
	return w.notifications.Process(ctx, event)
}

// handleScanFolder reconciles a folder. Per-document failures are recorded
// by the syncer and do not fail the task.
func (w *Worker) handleScanFolder(ctx context.Context, task *domain.Task) error {
	folderID := task.FolderID()
	if folderID == "" {
		return fmt.Errorf("folder_id not found in task payload")
	}

	results, err := w.syncer.ScanFolder(ctx, folderID, task.ScanWindow(w.scanWindow))
	if err != nil {
		return err
	}

	failed := 0
	for _, result := range results {
		if result.Action == domain.SyncActionFailed {
			failed++
		}
	}
	if failed > 0 {
		w.logger.Warn("some documents failed during scan",
			"folder_id", folderID,
			"total", len(results),
			"failed", failed,
		)
	}
	return nil
}

// handleRenewChannels runs one renewal pass.
func (w *Worker) handleRenewChannels(ctx context.Context, task *domain.Task) error {
	report, err := w.channels.RenewExpiring(ctx, task.RenewThreshold(w.renewalThreshold))
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		w.logger.Warn("some channels failed to renew",
			"checked", report.Checked,
			"renewed", report.Renewed,
			"failed", report.Failed,
		)
	}
	return nil
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}

// Ping reports the worker as unhealthy when it is stopped or its queue is down.
func (w *Worker) Ping(ctx context.Context) error {
	h := w.Health(ctx)
	if !h.Running {
		return errors.New("worker not running")
	}
	if !h.QueueHealth {
		return fmt.Errorf("task queue: %s", h.Error)
	}
	return nil
}
