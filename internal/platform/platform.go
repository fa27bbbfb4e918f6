package platform

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// Standard metric keys. Anything else an adapter returns is a platform extra.
const (
	StatViews       = "views"
	StatLikes       = "likes"
	StatComments    = "comments"
	StatShares      = "shares"
	StatImpressions = "impressions"
	StatReach       = "reach"
)

var StandardStats = []string{StatViews, StatLikes, StatComments, StatShares, StatImpressions, StatReach}

// Stats is a metrics map as returned by a platform. Missing standard keys count as 0.
type Stats map[string]any

type PublishResult struct {
	PlatformPostID string
	VideoURL       string
}

// Adapter is the capability set every platform integration provides. Adapters
// return *APIError values so callers can decide between retrying and giving up.
type Adapter interface {
	Platform() models.Platform
	Publish(ctx context.Context, acc *models.SocialAccount, post *models.Post) (*PublishResult, error)
	GetPostMetrics(ctx context.Context, acc *models.SocialAccount, platformPostID string) (Stats, error)
	GetAccountAnalytics(ctx context.Context, acc *models.SocialAccount, start, end time.Time) (Stats, error)
	GetAudienceInsights(ctx context.Context, acc *models.SocialAccount) (models.Demographics, error)
	RefreshAccessToken(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error)
}
