// Package jobs holds the background units of the pipeline. Each job loads its
// entity, resolves the platform adapter, calls out under a retry policy and
// writes the outcome back. Jobs return an error only for infrastructure faults;
// platform failures are terminal states, not errors. A publish whose account
// cannot be loaded is failed instead, so no post is left in processing.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/lock"
	applog "github.com/maheshrc27/postflow/internal/log"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"go.uber.org/zap"
)

// Scheduler enqueues follow-up work. queue.Client implements it.
type Scheduler interface {
	EnqueueMetrics(ctx context.Context, postID int64, delay time.Duration) error
	EnqueueAnalytics(ctx context.Context, accountID int64) error
}

type Deps struct {
	Posts     repository.PostRepository
	Accounts  repository.SocialAccountRepository
	Metrics   repository.MetricRepository
	Attempts  repository.PublishAttemptRepository
	Adapters  *platform.Registry
	Scheduler Scheduler
	Locker    lock.Locker
	Logger    *zap.SugaredLogger
	Recorder  *telemetry.Recorder
}

func (d Deps) logger() *zap.SugaredLogger {
	if d.Logger == nil {
		return applog.Nop()
	}
	return d.Logger
}

func PublishPolicy() retry.Policy {
	return retry.Policy{
		Name:        "publish",
		MaxAttempts: 3,
		Backoff:     120 * time.Second,
		Timeout:     600 * time.Second,
		Retryable:   platform.IsRetryable,
	}
}

func MetricsPolicy() retry.Policy {
	return retry.Policy{
		Name:        "metrics",
		MaxAttempts: 3,
		Backoff:     120 * time.Second,
		Timeout:     60 * time.Second,
		Retryable:   platform.IsRetryable,
	}
}

func AnalyticsPolicy() retry.Policy {
	p := MetricsPolicy()
	p.Name = "analytics"
	return p
}

func RefreshPolicy() retry.Policy {
	return retry.Policy{
		Name:        "refresh",
		MaxAttempts: 2,
		Backoff:     300 * time.Second,
		Timeout:     60 * time.Second,
		Retryable:   platform.IsRetryable,
	}
}

// DefaultFollowUps are the delays after publishing at which post metrics are collected.
var DefaultFollowUps = []time.Duration{time.Hour, 24 * time.Hour, 7 * 24 * time.Hour}

// flagRevoked moves the account to reconnect_required when err reports that
// the platform rejected its credentials.
func flagRevoked(ctx context.Context, deps Deps, logger *zap.SugaredLogger, acc *models.SocialAccount, err error) {
	if !errors.Is(err, platform.ErrCredentialExpired) {
		return
	}
	if err := deps.Accounts.SetStatus(context.WithoutCancel(ctx), acc.ID, models.AccountStatusReconnectRequired); err != nil {
		logger.Errorw("failed to flag account for reconnect", "account_id", acc.ID, "error", err)
		return
	}
	logger.Warnw("account credentials rejected, reconnect required", "account_id", acc.ID, "platform", acc.Platform)
}

func outcome(err error) string {
	if err != nil {
		return telemetry.OutcomeFailed
	}
	return telemetry.OutcomeSucceeded
}
