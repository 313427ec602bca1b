package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/zenportal/backend/internal/config"
)

// Client enqueues background tasks. Enqueue failures on notification paths
// are logged and swallowed by callers; a lost email never fails the request
// that triggered it.
type Client struct {
	inner *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{inner: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (c *Client) Close() error {
	return c.inner.Close()
}

func (c *Client) EnqueueLogNotification(ctx context.Context, logID uuid.UUID) error {
	task, err := NewLogNotificationTask(logID)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3))
}

func (c *Client) EnqueueClientViewed(ctx context.Context, clientID uuid.UUID) error {
	task, err := NewClientViewedTask(clientID)
	if err != nil {
		return err
	}
	// Debounced lightly: repeated refreshes of the report within the window
	// collapse into one task id on the queue.
	return c.enqueue(ctx, task,
		asynq.MaxRetry(1),
		asynq.TaskID("client-viewed:"+clientID.String()),
		asynq.Retention(time.Minute))
}

func (c *Client) EnqueueSubscriptionEmail(ctx context.Context, workspaceID uuid.UUID, kind string) error {
	task, err := NewSubscriptionEmailTask(workspaceID, kind)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3))
}

func (c *Client) EnqueueWeeklyRecap(ctx context.Context, workspaceID uuid.UUID) error {
	task, err := NewWeeklyRecapTask(workspaceID)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(2))
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := c.inner.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	slog.Debug("task enqueued", "type", task.Type(), "id", info.ID, "queue", info.Queue)
	return nil
}
