package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/migrations"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB runs against a disposable database named by POSTGRES_TEST_DSN.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Up(db))
	_, err = db.Exec(`TRUNCATE publish_attempts, metrics, posts, social_accounts RESTART IDENTITY`)
	require.NoError(t, err)
	return db
}

func insertAccount(t *testing.T, db *sql.DB, cipher repository.TokenCipher, platform models.Platform, expires *time.Time) int64 {
	t.Helper()
	access, err := cipher.Encrypt("access-1")
	require.NoError(t, err)
	refresh, err := cipher.Encrypt("refresh-1")
	require.NoError(t, err)

	var id int64
	err = db.QueryRow(`
		INSERT INTO social_accounts (platform, platform_user_id, handle, access_token, refresh_token, token_expires_at)
		VALUES ($1, 'u1', 'handle', $2, $3, $4) RETURNING id`,
		platform, access, refresh, expires).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestSocialAccountRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cipher, err := utils.NewCipher("integration-test-secret")
	require.NoError(t, err)
	repo := repository.NewSocialAccountRepository(db, cipher)

	soon := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	id := insertAccount(t, db, cipher, models.PlatformTiktok, &soon)
	insertAccount(t, db, cipher, models.PlatformMastodon, nil)

	acc, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "access-1", acc.AccessToken)
	assert.Equal(t, "refresh-1", acc.RefreshToken)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT access_token FROM social_accounts WHERE id = $1`, id).Scan(&stored))
	assert.NotEqual(t, "access-1", stored)

	candidates, err := repo.ListRefreshCandidates(ctx, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, id, candidates[0].ID)

	later := soon.Add(48 * time.Hour)
	require.NoError(t, repo.UpdateToken(ctx, id, &models.AccountToken{AccessToken: "access-2", ExpiresAt: &later}))
	acc, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "access-2", acc.AccessToken)
	assert.Equal(t, "refresh-1", acc.RefreshToken)
	assert.True(t, later.Equal(*acc.TokenExpiresAt))

	require.NoError(t, repo.SetStatus(ctx, id, models.AccountStatusReconnectRequired))
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	missing, err := repo.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Error(t, repo.SetStatus(ctx, 9999, models.AccountStatusActive))
}

func TestPostLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cipher, err := utils.NewCipher("integration-test-secret")
	require.NoError(t, err)
	accID := insertAccount(t, db, cipher, models.PlatformYoutube, nil)

	var postID int64
	require.NoError(t, db.QueryRow(`
		INSERT INTO posts (account_id, title, hashtags, status) VALUES ($1, 'launch', '{go,video}', 'scheduled') RETURNING id`,
		accID).Scan(&postID))

	posts := repository.NewPostRepository(db)

	post, err := posts.GetByID(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "video"}, post.Hashtags)
	assert.Equal(t, models.PostStatusScheduled, post.Status)

	claimed, err := posts.BeginProcessing(ctx, postID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = posts.BeginProcessing(ctx, postID)
	require.NoError(t, err)
	assert.False(t, claimed)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, posts.MarkPublished(ctx, postID, models.PublishOutcome{PlatformPostID: "yt-9", VideoURL: "https://youtu.be/yt-9", PublishedAt: now}))
	assert.ErrorIs(t, posts.MarkFailed(ctx, postID, "late"), repository.ErrStaleTransition)

	post, err = posts.GetByID(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.NoError(t, post.CheckInvariant())

	// the schema rejects a published row without a platform id
	_, err = db.Exec(`UPDATE posts SET platform_post_id = NULL WHERE id = $1`, postID)
	assert.Error(t, err)

	attempts := repository.NewPublishAttemptRepository(db)
	_, err = attempts.Create(ctx, &models.PublishAttempt{PostID: postID, AccountID: accID, Attempt: 1})
	require.NoError(t, err)
	list, err := attempts.ListByPostID(ctx, postID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].ErrorMessage)

	metrics := repository.NewMetricRepository(db)
	_, err = metrics.Create(ctx, &models.Metric{
		PostID:         &postID,
		AccountID:      accID,
		MetricType:     models.MetricTypePost,
		Date:           now,
		Views:          1000,
		EngagementRate: decimal.RequireFromString("8.00"),
		Metadata:       models.Metadata{"favorites": 3},
	})
	require.NoError(t, err)

	var rate decimal.Decimal
	require.NoError(t, db.QueryRow(`SELECT engagement_rate FROM metrics WHERE post_id = $1`, postID).Scan(&rate))
	assert.True(t, decimal.NewFromInt(8).Equal(rate))
}
