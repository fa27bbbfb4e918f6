package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/jobs"
	"go.uber.org/zap"
)

const (
	TaskTypePublishPost      = "post:publish"
	TaskTypeCollectMetrics   = "post:metrics"
	TaskTypeAccountAnalytics = "account:analytics"
	TaskTypeAnalyticsSweep   = "account:analytics_sweep"
	TaskTypeRefreshTokens    = "account:refresh_tokens"
)

const (
	QueuePublish     = "publish"
	QueueMetrics     = "metrics"
	QueueMaintenance = "maintenance"
)

// Priorities are asynq queue weights.
var Priorities = map[string]int{
	QueuePublish:     6,
	QueueMetrics:     3,
	QueueMaintenance: 1,
}

type PostPayload struct {
	PostID int64 `json:"post_id"`
}

type AccountPayload struct {
	AccountID int64 `json:"account_id"`
}

// Queue dispatches tasks to the jobs it was built with.
type Queue struct {
	publish   *jobs.PublishJob
	metrics   *jobs.MetricsJob
	analytics *jobs.AnalyticsJob
	refresh   *jobs.TokenRefreshJob
	logger    *zap.SugaredLogger
}

func NewQueue(
	publish *jobs.PublishJob,
	metrics *jobs.MetricsJob,
	analytics *jobs.AnalyticsJob,
	refresh *jobs.TokenRefreshJob,
	logger *zap.SugaredLogger) *Queue {
	return &Queue{
		publish:   publish,
		metrics:   metrics,
		analytics: analytics,
		refresh:   refresh,
		logger:    logger,
	}
}

// ServerConfig is the asynq worker setup shared by every deployment.
func ServerConfig(concurrency int, logger *zap.SugaredLogger) asynq.Config {
	return asynq.Config{
		Concurrency: concurrency,
		Queues:      Priorities,
		Logger:      logger,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Errorw("task failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
		}),
	}
}
