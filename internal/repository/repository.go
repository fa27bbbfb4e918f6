package repository

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// ErrStaleTransition is returned when a post is not in the state a write expects.
var ErrStaleTransition = errors.New("post is not in the expected state")

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListActive(ctx context.Context) ([]*models.SocialAccount, error)
	// ListRefreshCandidates returns active accounts whose token expiry is known
	// and at or before the given instant.
	ListRefreshCandidates(ctx context.Context, before time.Time) ([]*models.SocialAccount, error)
	UpdateToken(ctx context.Context, id int64, token *models.AccountToken) error
	SetStatus(ctx context.Context, id int64, status models.AccountStatus) error
	MarkSynced(ctx context.Context, id int64, at time.Time) error
}

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	// BeginProcessing moves a publishable post to processing. It reports false
	// when another writer got there first or the post is not publishable.
	BeginProcessing(ctx context.Context, id int64) (bool, error)
	MarkPublished(ctx context.Context, id int64, outcome models.PublishOutcome) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

type MetricRepository interface {
	Create(ctx context.Context, m *models.Metric) (int64, error)
}

type PublishAttemptRepository interface {
	Create(ctx context.Context, a *models.PublishAttempt) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error)
}

// TokenCipher seals tokens before they reach the database.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}
