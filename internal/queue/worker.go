package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishTask)
	mux.HandleFunc(TaskTypeCollectMetrics, q.HandleMetricsTask)
	mux.HandleFunc(TaskTypeAccountAnalytics, q.HandleAnalyticsTask)
	mux.HandleFunc(TaskTypeAnalyticsSweep, q.HandleAnalyticsSweepTask)
	mux.HandleFunc(TaskTypeRefreshTokens, q.HandleRefreshTokensTask)
}

func (q *Queue) HandlePublishTask(ctx context.Context, task *asynq.Task) error {
	var payload PostPayload
	if err := decode(task, &payload); err != nil {
		return err
	}
	return q.publish.Run(ctx, payload.PostID)
}

func (q *Queue) HandleMetricsTask(ctx context.Context, task *asynq.Task) error {
	var payload PostPayload
	if err := decode(task, &payload); err != nil {
		return err
	}
	return q.metrics.Run(ctx, payload.PostID)
}

func (q *Queue) HandleAnalyticsTask(ctx context.Context, task *asynq.Task) error {
	var payload AccountPayload
	if err := decode(task, &payload); err != nil {
		return err
	}
	return q.analytics.Run(ctx, payload.AccountID)
}

func (q *Queue) HandleAnalyticsSweepTask(ctx context.Context, task *asynq.Task) error {
	return q.analytics.Sweep(ctx)
}

func (q *Queue) HandleRefreshTokensTask(ctx context.Context, task *asynq.Task) error {
	return q.refresh.RefreshTokens(ctx)
}

// decode rejects malformed payloads without retrying them.
func decode(task *asynq.Task, v any) error {
	if err := json.Unmarshal(task.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return nil
}
