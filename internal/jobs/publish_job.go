package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"go.uber.org/zap"
)

type PublishJob struct {
	deps   Deps
	logger *zap.SugaredLogger

	Policy    retry.Policy
	FollowUps []time.Duration
	Now       func() time.Time
}

func NewPublishJob(deps Deps) *PublishJob {
	return &PublishJob{
		deps:      deps,
		logger:    deps.logger().With("job", "publish"),
		Policy:    PublishPolicy(),
		FollowUps: DefaultFollowUps,
		Now:       time.Now,
	}
}

// Run publishes one post. A post that is not publishable, or that another
// worker already claimed, is left alone.
func (j *PublishJob) Run(ctx context.Context, postID int64) error {
	started := time.Now()

	post, err := j.deps.Posts.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		j.logger.Warnw("post not found", "post_id", postID)
		return nil
	}

	claimed, err := j.deps.Posts.BeginProcessing(ctx, postID)
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	if !claimed {
		j.logger.Infow("post not publishable, skipping", "post_id", postID, "status", post.Status)
		j.deps.Recorder.RecordJob(ctx, "publish", telemetry.OutcomeSkipped, 0, time.Since(started))
		return nil
	}

	attempts, err := j.publish(ctx, post)
	j.deps.Recorder.RecordJob(ctx, "publish", outcome(err), attempts, time.Since(started))
	return err
}

func (j *PublishJob) publish(ctx context.Context, post *models.Post) (int, error) {
	acc, err := j.deps.Accounts.GetByID(ctx, post.AccountID)
	if err != nil {
		return 0, j.fail(ctx, post, nil, 0, fmt.Errorf("load account: %w", err))
	}
	if acc == nil {
		return 0, j.fail(ctx, post, nil, 0, fmt.Errorf("account %d not found", post.AccountID))
	}
	if acc.NeedsReconnect() {
		return 0, j.fail(ctx, post, acc, 0, errors.New("account requires reconnect"))
	}

	adapter, err := j.deps.Adapters.Get(acc.Platform)
	if err != nil {
		return 0, j.fail(ctx, post, acc, 0, err)
	}

	res, report := retry.Do(ctx, j.Policy, func(ctx context.Context, attempt int) (*platform.PublishResult, error) {
		res, err := adapter.Publish(ctx, acc, post)
		if err != nil {
			return nil, err
		}
		if res == nil || res.PlatformPostID == "" {
			return nil, platform.Permanent(acc.Platform, "publish", errors.New("platform returned no post id"))
		}
		return res, nil
	}, func(attempt int, err error, retrying bool) {
		j.recordAttempt(ctx, post, attempt, err)
		j.logger.Warnw("publish attempt failed",
			"post_id", post.ID, "account_id", acc.ID, "platform", acc.Platform,
			"attempt", attempt, "retrying", retrying, "error", err)
	})

	if report.Err != nil {
		flagRevoked(ctx, j.deps, j.logger, acc, report.Err)
		return report.Attempts, j.fail(ctx, post, acc, report.Attempts, report.Err)
	}
	j.recordAttempt(ctx, post, report.Attempts, nil)

	now := j.Now()
	err = j.deps.Posts.MarkPublished(context.WithoutCancel(ctx), post.ID, models.PublishOutcome{
		PlatformPostID: res.PlatformPostID,
		VideoURL:       res.VideoURL,
		PublishedAt:    now,
	})
	if err != nil {
		return report.Attempts, fmt.Errorf("mark post %d published: %w", post.ID, err)
	}

	j.logger.Infow("post published",
		"post_id", post.ID, "account_id", acc.ID, "platform", acc.Platform,
		"platform_post_id", res.PlatformPostID, "attempts", report.Attempts)

	if err := j.deps.Accounts.MarkSynced(ctx, acc.ID, now); err != nil {
		j.logger.Warnw("failed to update last synced", "account_id", acc.ID, "error", err)
	}
	j.scheduleFollowUps(ctx, post.ID)
	return report.Attempts, nil
}

// fail moves the post to failed. It returns an error only when the store
// could not record the failure.
func (j *PublishJob) fail(ctx context.Context, post *models.Post, acc *models.SocialAccount, attempts int, cause error) error {
	fields := []any{"post_id", post.ID, "account_id", post.AccountID, "attempts", attempts, "error", cause}
	if acc != nil {
		fields = append(fields, "platform", acc.Platform)
	}
	j.logger.Errorw("publish failed", fields...)

	err := j.deps.Posts.MarkFailed(context.WithoutCancel(ctx), post.ID, cause.Error())
	if errors.Is(err, repository.ErrStaleTransition) {
		j.logger.Warnw("post left processing before failure was recorded", "post_id", post.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark post %d failed: %w", post.ID, err)
	}
	return nil
}

func (j *PublishJob) recordAttempt(ctx context.Context, post *models.Post, attempt int, cause error) {
	if j.deps.Attempts == nil {
		return
	}
	row := &models.PublishAttempt{PostID: post.ID, AccountID: post.AccountID, Attempt: attempt}
	if cause != nil {
		row.ErrorMessage = cause.Error()
	}
	if _, err := j.deps.Attempts.Create(context.WithoutCancel(ctx), row); err != nil {
		j.logger.Warnw("failed to record publish attempt", "post_id", post.ID, "attempt", attempt, "error", err)
	}
}

func (j *PublishJob) scheduleFollowUps(ctx context.Context, postID int64) {
	if j.deps.Scheduler == nil {
		return
	}
	for _, delay := range j.FollowUps {
		if err := j.deps.Scheduler.EnqueueMetrics(ctx, postID, delay); err != nil {
			j.logger.Warnw("failed to schedule metrics collection", "post_id", postID, "delay", delay, "error", err)
		}
	}
}
