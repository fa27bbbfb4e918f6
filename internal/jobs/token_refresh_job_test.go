package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refreshNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func expiresIn(d time.Duration) *time.Time {
	t := refreshNow.Add(d)
	return &t
}

type refreshFixture struct {
	*fixture
	tiktok   *fakeAdapter
	mastodon *fakeAdapter
	locker   *lock.Local
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	tiktok := newFake(models.PlatformTiktok)
	mastodon := newFake(models.PlatformMastodon)
	f := newFixture(t, tiktok, mastodon)
	locker := lock.NewLocal()
	f.deps.Locker = locker
	return &refreshFixture{fixture: f, tiktok: tiktok, mastodon: mastodon, locker: locker}
}

func (f *refreshFixture) job() *TokenRefreshJob {
	j := NewTokenRefreshJob(f.deps, DefaultExcluded)
	j.Policy = fast(j.Policy)
	j.Now = func() time.Time { return refreshNow }
	return j
}

func TestRefreshStoresNewToken(t *testing.T) {
	f := newRefreshFixture(t)
	id := f.db.PutAccount(models.SocialAccount{
		Platform: models.PlatformTiktok, AccessToken: "old", RefreshToken: "keep-me", TokenExpiresAt: expiresIn(2 * time.Hour),
	})
	f.tiktok.token = &models.AccountToken{AccessToken: "fresh", ExpiresAt: expiresIn(26 * time.Hour)}
	f.tiktok.refreshErrs = []error{transient("busy")}

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	acc, _ := f.db.Account(id)
	assert.Equal(t, "fresh", acc.AccessToken)
	assert.Equal(t, "keep-me", acc.RefreshToken)
	assert.Equal(t, *expiresIn(26 * time.Hour), *acc.TokenExpiresAt)
	assert.Equal(t, models.AccountStatusActive, acc.Status)
	assert.Equal(t, 2, f.tiktok.refreshCalls)
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	f := newRefreshFixture(t)
	id := f.db.PutAccount(models.SocialAccount{
		Platform: models.PlatformTiktok, RefreshToken: "r1", TokenExpiresAt: expiresIn(-time.Hour),
	})
	f.tiktok.token = &models.AccountToken{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: expiresIn(24 * time.Hour)}

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	acc, _ := f.db.Account(id)
	assert.Equal(t, "r2", acc.RefreshToken)
}

func TestRefreshFailureBeforeExpiryKeepsAccountActive(t *testing.T) {
	f := newRefreshFixture(t)
	id := f.db.PutAccount(models.SocialAccount{
		Platform: models.PlatformTiktok, AccessToken: "still-good", TokenExpiresAt: expiresIn(12 * time.Hour),
	})
	f.tiktok.refreshErrs = []error{transient("down"), transient("down")}

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	acc, _ := f.db.Account(id)
	assert.Equal(t, models.AccountStatusActive, acc.Status)
	assert.Equal(t, "still-good", acc.AccessToken)
	assert.Zero(t, f.db.AccountWrites(id))
	assert.Equal(t, 2, f.tiktok.refreshCalls)
}

func TestRefreshFailureAfterExpiryRequiresReconnect(t *testing.T) {
	f := newRefreshFixture(t)
	id := f.db.PutAccount(models.SocialAccount{
		Platform: models.PlatformTiktok, TokenExpiresAt: expiresIn(-time.Hour),
	})
	f.tiktok.refreshErrs = []error{platform.CredentialExpired(models.PlatformTiktok, "refresh token", errors.New("invalid_grant"))}

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	acc, _ := f.db.Account(id)
	assert.Equal(t, models.AccountStatusReconnectRequired, acc.Status)
	assert.Equal(t, 1, f.tiktok.refreshCalls)
}

func TestRefreshNeverTouchesExcludedPlatforms(t *testing.T) {
	f := newRefreshFixture(t)
	expired := f.db.PutAccount(models.SocialAccount{Platform: models.PlatformMastodon, TokenExpiresAt: expiresIn(-48 * time.Hour)})
	soon := f.db.PutAccount(models.SocialAccount{Platform: models.PlatformMastodon, TokenExpiresAt: expiresIn(time.Hour)})

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	for _, id := range []int64{expired, soon} {
		acc, _ := f.db.Account(id)
		assert.Equal(t, models.AccountStatusActive, acc.Status)
		assert.Zero(t, f.db.AccountWrites(id))
	}
	assert.Zero(t, f.mastodon.refreshCalls)
}

func TestRefreshIgnoresAccountsOutsideHorizon(t *testing.T) {
	f := newRefreshFixture(t)
	later := f.db.PutAccount(models.SocialAccount{Platform: models.PlatformTiktok, TokenExpiresAt: expiresIn(48 * time.Hour)})
	never := f.db.PutAccount(models.SocialAccount{Platform: models.PlatformTiktok})
	flagged := f.db.PutAccount(models.SocialAccount{
		Platform: models.PlatformTiktok, TokenExpiresAt: expiresIn(-time.Hour), Status: models.AccountStatusReconnectRequired,
	})

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	for _, id := range []int64{later, never, flagged} {
		assert.Zero(t, f.db.AccountWrites(id))
	}
	assert.Zero(t, f.tiktok.refreshCalls)
}

func TestRefreshSkipsLockedAccount(t *testing.T) {
	f := newRefreshFixture(t)
	id := f.db.PutAccount(models.SocialAccount{Platform: models.PlatformTiktok, TokenExpiresAt: expiresIn(time.Hour)})
	f.tiktok.token = &models.AccountToken{AccessToken: "fresh"}

	release, err := f.locker.Acquire(context.Background(), "refresh:1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	require.NoError(t, f.job().RefreshTokens(context.Background()))
	assert.Zero(t, f.tiktok.refreshCalls)

	require.NoError(t, release(context.Background()))
	require.NoError(t, f.job().RefreshTokens(context.Background()))
	assert.Equal(t, 1, f.tiktok.refreshCalls)
}

func TestRefreshEmptyTokenIsAFailure(t *testing.T) {
	f := newRefreshFixture(t)
	id := f.db.PutAccount(models.SocialAccount{Platform: models.PlatformTiktok, AccessToken: "old", TokenExpiresAt: expiresIn(-time.Minute)})
	f.tiktok.token = &models.AccountToken{}

	require.NoError(t, f.job().RefreshTokens(context.Background()))

	acc, _ := f.db.Account(id)
	assert.Equal(t, "old", acc.AccessToken)
	assert.Equal(t, models.AccountStatusReconnectRequired, acc.Status)
}

func TestRefreshManyAccounts(t *testing.T) {
	f := newRefreshFixture(t)
	f.tiktok.token = &models.AccountToken{AccessToken: "fresh"}
	for i := 0; i < 25; i++ {
		f.db.PutAccount(models.SocialAccount{Platform: models.PlatformTiktok, TokenExpiresAt: expiresIn(time.Hour)})
	}

	j := f.job()
	j.Concurrency = 3
	require.NoError(t, j.RefreshTokens(context.Background()))
	assert.Equal(t, 25, f.tiktok.refreshCalls)
}
