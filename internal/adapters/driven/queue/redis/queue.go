package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix       = "sercha-drive"
	defaultClaimTimeout = 5 * time.Minute
	defaultTaskTTL      = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// QueueConfig holds configuration for the Redis Streams queue
type QueueConfig struct {
	// Prefix namespaces every key the queue writes
	Prefix string
	// ConsumerName must be unique per worker instance
	ConsumerName string
	// ClaimTimeout is how long a delivered task may stay unacknowledged
	// before another worker takes it over
	ClaimTimeout time.Duration
	// TaskTTL bounds how long task bodies are kept
	TaskTTL time.Duration
	Logger  *slog.Logger
}

// Queue implements TaskQueue using Redis Streams with one consumer group.
// Delayed tasks wait in a sorted set until due.
type Queue struct {
	client       *redis.Client
	consumerName string
	claimTimeout time.Duration
	taskTTL      time.Duration
	logger       *slog.Logger

	stream    string
	group     string
	scheduled string
	taskKey   string
}

// NewQueue creates a Redis-backed task queue and its consumer group
func NewQueue(ctx context.Context, client *redis.Client, cfg QueueConfig) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "worker-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = defaultClaimTimeout
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = defaultTaskTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	q := &Queue{
		client:       client,
		consumerName: cfg.ConsumerName,
		claimTimeout: cfg.ClaimTimeout,
		taskTTL:      cfg.TaskTTL,
		logger:       cfg.Logger,
		stream:       cfg.Prefix + ":tasks",
		group:        cfg.Prefix + ":workers",
		scheduled:    cfg.Prefix + ":scheduled",
		taskKey:      cfg.Prefix + ":task:",
	}

	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

func (q *Queue) bodyKey(taskID string) string { return q.taskKey + taskID }
func (q *Queue) msgKey(taskID string) string  { return q.taskKey + taskID + ":msg" }

func (q *Queue) streamArgs(task *domain.Task) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"task_id": task.ID,
			"type":    string(task.Type),
		},
	}
}

// Enqueue stores the task body and either streams it or parks it until ScheduledFor
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.bodyKey(task.ID), data, q.taskTTL)
	if task.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, q.scheduled, redis.Z{Score: float64(task.ScheduledFor.Unix()), Member: task.ID})
	} else {
		pipe.XAdd(ctx, q.streamArgs(task))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// DequeueWithTimeout returns the next task, preferring abandoned deliveries,
// and blocks up to timeout seconds for new ones
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if err := q.promoteScheduledTasks(ctx); err != nil {
		q.logger.Warn("failed to promote scheduled tasks", "error", err)
	}

	if task, err := q.claimAbandonedTask(ctx); err == nil && task != nil {
		return task, nil
	}

	block := time.Duration(timeout) * time.Second
	if block <= 0 {
		block = -1 // no BLOCK argument: return immediately
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumerName,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.deliver(ctx, streams[0].Messages[0])
}

// deliver loads the task for a stream message and records the delivery
func (q *Queue) deliver(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}
	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		// body expired
		q.drop(ctx, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.MarkProcessing()
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.bodyKey(task.ID), data, q.taskTTL)
	pipe.Set(ctx, q.msgKey(task.ID), msg.ID, q.taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record delivery: %w", err)
	}
	return task, nil
}

func (q *Queue) drop(ctx context.Context, msgID string) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, _ = pipe.Exec(ctx)
}

// Ack acknowledges successful completion of a task
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.MarkCompleted()
	return q.settle(ctx, task, false)
}

// Nack reschedules the task with backoff, or marks it failed once attempts run out
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	retry := task.CanRetry()
	if retry {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return q.settle(ctx, task, retry)
}

// settle acknowledges the current delivery and stores the task's new state
func (q *Queue) settle(ctx context.Context, task *domain.Task, reschedule bool) error {
	msgID, err := q.client.Get(ctx, q.msgKey(task.ID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get delivery: %w", err)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, q.stream, q.group, msgID)
		pipe.XDel(ctx, q.stream, msgID)
	}
	pipe.Set(ctx, q.bodyKey(task.ID), data, q.taskTTL)
	if reschedule {
		pipe.ZAdd(ctx, q.scheduled, redis.Z{Score: float64(task.ScheduledFor.Unix()), Member: task.ID})
	}
	pipe.Del(ctx, q.msgKey(task.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("settle task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
// Returns domain.ErrNotFound once the body has expired.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, q.bodyKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Stats returns queue depth and in-flight deliveries
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	groups, err := q.client.XInfoGroups(ctx, q.stream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get group info: %w", err)
	}
	for _, g := range groups {
		if g.Name == q.group {
			stats.ProcessingCount = g.Pending
		}
	}

	// settled deliveries are deleted, so the stream holds waiting plus in-flight entries
	length, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("get stream length: %w", err)
	}
	stats.PendingCount = length - stats.ProcessingCount

	scheduled, err := q.client.ZCard(ctx, q.scheduled).Result()
	if err != nil {
		return nil, fmt.Errorf("get scheduled count: %w", err)
	}
	stats.PendingCount += scheduled
	return stats, nil
}

// Ping checks if the queue backend is healthy
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared
func (q *Queue) Close() error {
	return nil
}

// promoteScheduledTasks moves due delayed tasks onto the stream
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.scheduled, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	for _, taskID := range due {
		// ZRem decides which promoter owns the task when several workers race
		removed, err := q.client.ZRem(ctx, q.scheduled, taskID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		if err := q.client.XAdd(ctx, q.streamArgs(task)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandonedTask takes over a delivery left unacknowledged past the claim timeout
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   q.claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumerName,
			MinIdle:  q.claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		task, err := q.deliver(ctx, claimed[0])
		if err != nil || task == nil {
			continue
		}
		q.logger.Info("claimed abandoned task", "task_id", task.ID, "previous_consumer", p.Consumer)
		return task, nil
	}
	return nil, nil
}
