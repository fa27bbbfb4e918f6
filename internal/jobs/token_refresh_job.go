package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultExcluded lists platforms whose tokens never expire.
var DefaultExcluded = []models.Platform{models.PlatformMastodon}

type TokenRefreshJob struct {
	deps   Deps
	logger *zap.SugaredLogger

	Policy      retry.Policy
	Horizon     time.Duration
	Concurrency int
	LockTTL     time.Duration
	Excluded    map[models.Platform]bool
	Now         func() time.Time
}

func NewTokenRefreshJob(deps Deps, excluded []models.Platform) *TokenRefreshJob {
	set := make(map[models.Platform]bool, len(excluded))
	for _, p := range excluded {
		set[p] = true
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	policy := RefreshPolicy()
	return &TokenRefreshJob{
		deps:        deps,
		logger:      deps.logger().With("job", "token_refresh"),
		Policy:      policy,
		Horizon:     24 * time.Hour,
		Concurrency: 10,
		LockTTL:     policy.Budget() + time.Minute,
		Excluded:    set,
		Now:         time.Now,
	}
}

type refreshTally struct {
	refreshed, failed, skipped atomic.Int64
}

// RefreshTokens refreshes every active account whose token expires within the
// horizon, including tokens that already expired.
func (j *TokenRefreshJob) RefreshTokens(ctx context.Context) error {
	started := time.Now()

	accounts, err := j.deps.Accounts.ListRefreshCandidates(ctx, j.Now().Add(j.Horizon))
	if err != nil {
		return fmt.Errorf("list refresh candidates: %w", err)
	}

	var (
		wg    sync.WaitGroup
		tally refreshTally
	)
	semaphore := make(chan struct{}, max(j.Concurrency, 1))

	for _, acc := range accounts {
		if j.Excluded[acc.Platform] {
			tally.skipped.Add(1)
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			j.refreshAccount(ctx, acc, &tally)
		}(acc)
	}
	wg.Wait()

	failed := tally.failed.Load()
	j.logger.Infow("token refresh sweep done",
		"candidates", len(accounts), "refreshed", tally.refreshed.Load(),
		"failed", failed, "skipped", tally.skipped.Load())

	var runErr error
	if failed > 0 {
		runErr = fmt.Errorf("%d refreshes failed", failed)
	}
	j.deps.Recorder.RecordJob(ctx, "token_refresh", outcome(runErr), len(accounts), time.Since(started))
	return nil
}

func (j *TokenRefreshJob) refreshAccount(ctx context.Context, acc *models.SocialAccount, tally *refreshTally) {
	log := j.logger.With("account_id", acc.ID, "platform", acc.Platform)

	release, err := j.deps.Locker.Acquire(ctx, fmt.Sprintf("refresh:%d", acc.ID), j.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Debugw("refresh already in progress elsewhere")
		tally.skipped.Add(1)
		return
	}
	if err != nil {
		log.Errorw("failed to acquire refresh lock", "error", err)
		tally.skipped.Add(1)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("failed to release refresh lock", "error", err)
		}
	}()

	token, err := j.refresh(ctx, acc)
	if err != nil {
		tally.failed.Add(1)
		j.deps.Recorder.RecordRefresh(ctx, string(acc.Platform), telemetry.OutcomeFailed)
		j.handleFailure(ctx, acc, err)
		return
	}

	if err := j.deps.Accounts.UpdateToken(context.WithoutCancel(ctx), acc.ID, token); err != nil {
		tally.failed.Add(1)
		log.Errorw("failed to store refreshed token", "error", err)
		return
	}

	tally.refreshed.Add(1)
	j.deps.Recorder.RecordRefresh(ctx, string(acc.Platform), telemetry.OutcomeSucceeded)
	log.Infow("token refreshed", "expires_at", token.ExpiresAt)
}

func (j *TokenRefreshJob) refresh(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error) {
	adapter, err := j.deps.Adapters.Get(acc.Platform)
	if err != nil {
		return nil, err
	}

	token, report := retry.Do(ctx, j.Policy, func(ctx context.Context, attempt int) (*models.AccountToken, error) {
		token, err := adapter.RefreshAccessToken(ctx, acc)
		if err != nil {
			return nil, err
		}
		if token == nil || token.AccessToken == "" {
			return nil, errors.New("platform returned an empty access token")
		}
		return token, nil
	}, func(attempt int, err error, retrying bool) {
		j.logger.Warnw("refresh attempt failed", "account_id", acc.ID, "attempt", attempt, "retrying", retrying, "error", err)
	})
	return token, report.Err
}

// handleFailure flags accounts whose token is already unusable. Tokens that
// are still valid are left untouched for the next sweep.
func (j *TokenRefreshJob) handleFailure(ctx context.Context, acc *models.SocialAccount, cause error) {
	log := j.logger.With("account_id", acc.ID, "platform", acc.Platform, "error", cause)

	if !acc.TokenExpired(j.Now()) {
		log.Warnw("token refresh failed, current token still valid", "expires_at", acc.TokenExpiresAt)
		return
	}

	if err := j.deps.Accounts.SetStatus(context.WithoutCancel(ctx), acc.ID, models.AccountStatusReconnectRequired); err != nil {
		log.Errorw("failed to flag account for reconnect", "status_error", err)
		return
	}
	log.Warnw("token expired and refresh failed, reconnect required")
}
