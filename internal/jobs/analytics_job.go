package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/analytics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"go.uber.org/zap"
)

type AnalyticsJob struct {
	deps   Deps
	logger *zap.SugaredLogger

	Policy   retry.Policy
	Lookback time.Duration
	Now      func() time.Time
}

func NewAnalyticsJob(deps Deps) *AnalyticsJob {
	return &AnalyticsJob{
		deps:     deps,
		logger:   deps.logger().With("job", "analytics"),
		Policy:   AnalyticsPolicy(),
		Lookback: 24 * time.Hour,
		Now:      time.Now,
	}
}

// Run stores one account metric row covering the lookback window.
func (j *AnalyticsJob) Run(ctx context.Context, accountID int64) error {
	started := time.Now()

	acc, adapter, err := resolve(ctx, j.deps, accountID)
	if err != nil {
		return err
	}
	if adapter == nil {
		j.logger.Warnw("account cannot be queried, skipping analytics", "account_id", accountID)
		j.deps.Recorder.RecordJob(ctx, "analytics", telemetry.OutcomeSkipped, 0, time.Since(started))
		return nil
	}

	now := j.Now()
	start := now.Add(-j.Lookback)

	stats, report := retry.Do(ctx, j.Policy, func(ctx context.Context, attempt int) (platform.Stats, error) {
		return adapter.GetAccountAnalytics(ctx, acc, start, now)
	}, func(attempt int, err error, retrying bool) {
		j.logger.Warnw("analytics attempt failed", "account_id", accountID, "platform", acc.Platform, "attempt", attempt, "retrying", retrying, "error", err)
	})
	if report.Err != nil {
		j.logger.Errorw("account analytics failed",
			"account_id", accountID, "platform", acc.Platform, "attempts", report.Attempts, "error", report.Err)
		flagRevoked(ctx, j.deps, j.logger, acc, report.Err)
		j.deps.Recorder.RecordJob(ctx, "analytics", telemetry.OutcomeFailed, report.Attempts, time.Since(started))
		return nil
	}

	m := analytics.BuildMetric(analytics.Observation{
		AccountID:    acc.ID,
		Type:         models.MetricTypeAccount,
		Date:         now,
		Stats:        stats,
		Demographics: j.demographics(ctx, adapter, acc),
	})
	if _, err := j.deps.Metrics.Create(ctx, m); err != nil {
		return fmt.Errorf("store account metric: %w", err)
	}
	if err := j.deps.Accounts.MarkSynced(ctx, acc.ID, now); err != nil {
		j.logger.Warnw("failed to update last synced", "account_id", acc.ID, "error", err)
	}

	j.logger.Infow("account analytics collected", "account_id", accountID, "platform", acc.Platform)
	j.deps.Recorder.RecordJob(ctx, "analytics", telemetry.OutcomeSucceeded, report.Attempts, time.Since(started))
	return nil
}

// demographics never fails the job; any error yields an empty breakdown.
func (j *AnalyticsJob) demographics(ctx context.Context, adapter platform.Adapter, acc *models.SocialAccount) models.Demographics {
	ctx, cancel := context.WithTimeout(ctx, j.Policy.Timeout)
	defer cancel()

	d, err := adapter.GetAudienceInsights(ctx, acc)
	switch {
	case errors.Is(err, platform.ErrNotSupported):
		return models.Demographics{}
	case err != nil:
		j.logger.Warnw("audience insights unavailable", "account_id", acc.ID, "platform", acc.Platform, "error", err)
		return models.Demographics{}
	case d == nil:
		return models.Demographics{}
	}
	return d
}

// Sweep enqueues one analytics job per active account.
func (j *AnalyticsJob) Sweep(ctx context.Context) error {
	accounts, err := j.deps.Accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active accounts: %w", err)
	}

	enqueued := 0
	for _, acc := range accounts {
		if err := j.deps.Scheduler.EnqueueAnalytics(ctx, acc.ID); err != nil {
			j.logger.Warnw("failed to enqueue analytics", "account_id", acc.ID, "error", err)
			continue
		}
		enqueued++
	}
	j.logger.Infow("analytics sweep done", "accounts", len(accounts), "enqueued", enqueued)
	return nil
}
