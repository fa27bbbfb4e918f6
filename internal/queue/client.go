package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/jobs"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the pipeline uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

const (
	sweepUniqueTTL        = 55 * time.Minute
	refreshSweepTimeout   = time.Hour
	analyticsSweepTimeout = 10 * time.Minute
)

// Client enqueues pipeline tasks. Tasks never retry inside asynq: each job
// runs its own attempt budget, and the task timeout covers that budget.
type Client struct {
	enq    Enqueuer
	logger *zap.SugaredLogger
}

func NewClient(enq Enqueuer, logger *zap.SugaredLogger) *Client {
	return &Client{enq: enq, logger: logger}
}

func (c *Client) EnqueuePublish(ctx context.Context, postID int64, delay time.Duration) error {
	return c.enqueue(ctx, TaskTypePublishPost, PostPayload{PostID: postID},
		asynq.Queue(QueuePublish),
		asynq.Timeout(jobs.PublishPolicy().Budget()),
		asynq.ProcessIn(max(delay, 0)),
	)
}

func (c *Client) EnqueueMetrics(ctx context.Context, postID int64, delay time.Duration) error {
	return c.enqueue(ctx, TaskTypeCollectMetrics, PostPayload{PostID: postID},
		asynq.Queue(QueueMetrics),
		asynq.Timeout(jobs.MetricsPolicy().Budget()),
		asynq.ProcessIn(max(delay, 0)),
	)
}

func (c *Client) EnqueueAnalytics(ctx context.Context, accountID int64) error {
	// audience insights run after the analytics attempts, one timeout more
	p := jobs.AnalyticsPolicy()
	return c.enqueue(ctx, TaskTypeAccountAnalytics, AccountPayload{AccountID: accountID},
		asynq.Queue(QueueMetrics),
		asynq.Timeout(p.Budget()+p.Timeout),
	)
}

func (c *Client) EnqueueAnalyticsSweep(ctx context.Context) error {
	return c.enqueue(ctx, TaskTypeAnalyticsSweep, struct{}{},
		asynq.Queue(QueueMaintenance),
		asynq.Timeout(analyticsSweepTimeout),
		asynq.Unique(sweepUniqueTTL),
	)
}

// EnqueueTokenRefreshSweep is deduplicated so overlapping cron ticks never
// run two sweeps at once.
func (c *Client) EnqueueTokenRefreshSweep(ctx context.Context) error {
	return c.enqueue(ctx, TaskTypeRefreshTokens, struct{}{},
		asynq.Queue(QueueMaintenance),
		asynq.Timeout(refreshSweepTimeout),
		asynq.Unique(sweepUniqueTTL),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", taskType, err)
	}

	opts = append(opts, asynq.MaxRetry(0))
	info, err := c.enq.EnqueueContext(ctx, asynq.NewTask(taskType, body), opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		c.logger.Debugw("task already queued", "type", taskType)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	c.logger.Infow("task enqueued", "type", taskType, "id", info.ID, "queue", info.Queue, "payload", string(body))
	return nil
}
