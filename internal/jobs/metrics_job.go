package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/analytics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"go.uber.org/zap"
)

type MetricsJob struct {
	deps   Deps
	logger *zap.SugaredLogger

	Policy retry.Policy
	Now    func() time.Time
}

func NewMetricsJob(deps Deps) *MetricsJob {
	return &MetricsJob{
		deps:   deps,
		logger: deps.logger().With("job", "metrics"),
		Policy: MetricsPolicy(),
		Now:    time.Now,
	}
}

// Run stores one post metric row. Posts that are not published yet are skipped.
func (j *MetricsJob) Run(ctx context.Context, postID int64) error {
	started := time.Now()

	post, err := j.deps.Posts.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil || !post.IsPublished() {
		j.logger.Debugw("post not published, nothing to collect", "post_id", postID)
		j.deps.Recorder.RecordJob(ctx, "metrics", telemetry.OutcomeSkipped, 0, time.Since(started))
		return nil
	}

	acc, adapter, err := resolve(ctx, j.deps, post.AccountID)
	if err != nil {
		return err
	}
	if adapter == nil {
		j.logger.Warnw("account cannot be queried, skipping metrics", "post_id", postID, "account_id", post.AccountID)
		j.deps.Recorder.RecordJob(ctx, "metrics", telemetry.OutcomeSkipped, 0, time.Since(started))
		return nil
	}

	stats, report := retry.Do(ctx, j.Policy, func(ctx context.Context, attempt int) (platform.Stats, error) {
		return adapter.GetPostMetrics(ctx, acc, post.PlatformPostID)
	}, func(attempt int, err error, retrying bool) {
		j.logger.Warnw("metrics attempt failed", "post_id", postID, "platform", acc.Platform, "attempt", attempt, "retrying", retrying, "error", err)
	})
	if report.Err != nil {
		j.logger.Errorw("metrics collection failed",
			"post_id", postID, "account_id", acc.ID, "platform", acc.Platform,
			"attempts", report.Attempts, "error", report.Err)
		flagRevoked(ctx, j.deps, j.logger, acc, report.Err)
		j.deps.Recorder.RecordJob(ctx, "metrics", telemetry.OutcomeFailed, report.Attempts, time.Since(started))
		return nil
	}

	now := j.Now()
	m := analytics.BuildMetric(analytics.Observation{
		AccountID: acc.ID,
		PostID:    &post.ID,
		Type:      models.MetricTypePost,
		Date:      now,
		Stats:     stats,
	})
	if _, err := j.deps.Metrics.Create(ctx, m); err != nil {
		return fmt.Errorf("store post metric: %w", err)
	}
	if err := j.deps.Accounts.MarkSynced(ctx, acc.ID, now); err != nil {
		j.logger.Warnw("failed to update last synced", "account_id", acc.ID, "error", err)
	}

	j.logger.Infow("post metrics collected",
		"post_id", postID, "platform", acc.Platform, "views", m.Views, "engagement_rate", m.EngagementRate.String())
	j.deps.Recorder.RecordJob(ctx, "metrics", telemetry.OutcomeSucceeded, report.Attempts, time.Since(started))
	return nil
}

// resolve loads an account and its adapter. A nil adapter with a nil error
// means the account is missing, needs reconnecting or has no adapter.
func resolve(ctx context.Context, deps Deps, accountID int64) (*models.SocialAccount, platform.Adapter, error) {
	acc, err := deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("load account: %w", err)
	}
	if acc == nil || acc.NeedsReconnect() {
		return acc, nil, nil
	}
	adapter, err := deps.Adapters.Get(acc.Platform)
	if err != nil {
		return acc, nil, nil
	}
	return acc, adapter, nil
}
