// Package tiktok publishes videos through the TikTok Content Posting API.
package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	defaultBaseURL  = "https://open.tiktokapis.com"
	maxCaptionRunes = 2200
	statusComplete  = "PUBLISH_COMPLETE"
	statusFailed    = "FAILED"
)

type Config struct {
	ClientKey         string
	ClientSecret      string
	BaseURL           string
	PrivacyLevel      string
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

type Adapter struct {
	cfg    Config
	client *platform.Client
	media  media.Source
	now    func() time.Time
}

func New(cfg Config, src media.Source) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PrivacyLevel == "" {
		cfg.PrivacyLevel = "PUBLIC_TO_EVERYONE"
	}

	return &Adapter{
		cfg:    cfg,
		client: platform.NewClient(models.PlatformTiktok, cfg.HTTPClient, cfg.RequestsPerSecond, decodeError),
		media:  src,
		now:    time.Now,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformTiktok }

func (a *Adapter) Publish(ctx context.Context, acc *models.SocialAccount, post *models.Post) (*platform.PublishResult, error) {
	const op = "publish"

	videoURL, err := a.media.URL(ctx, post.MediaPath)
	if err != nil {
		if errors.Is(err, media.ErrNoURL) || errors.Is(err, media.ErrNotFound) {
			return nil, platform.Permanent(models.PlatformTiktok, op, err)
		}
		return nil, platform.Transient(models.PlatformTiktok, op, err)
	}

	body := transfer.VideoInitRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 truncateRunes(post.Caption(), maxCaptionRunes),
			PrivacyLevel:          a.cfg.PrivacyLevel,
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: videoURL,
		},
	}

	var out transfer.TiktokPublishInitResponse
	if err := a.postJSON(ctx, op, acc, "/v2/post/publish/video/init/", body, &out); err != nil {
		return nil, err
	}
	if err := envelopeError(op, out.Error); err != nil {
		return nil, err
	}
	if out.Data.PublishID == "" {
		return nil, platform.Permanent(models.PlatformTiktok, op, errors.New("no publish_id in response"))
	}

	return &platform.PublishResult{PlatformPostID: out.Data.PublishID}, nil
}

// GetPostMetrics takes the publish id stored at publish time and resolves it
// to the public video before querying counters.
func (a *Adapter) GetPostMetrics(ctx context.Context, acc *models.SocialAccount, publishID string) (platform.Stats, error) {
	const op = "post metrics"

	var status transfer.TiktokStatusResponse
	if err := a.postJSON(ctx, op, acc, "/v2/post/publish/status/fetch/", transfer.TiktokStatusRequest{PublishID: publishID}, &status); err != nil {
		return nil, err
	}
	if err := envelopeError(op, status.Error); err != nil {
		return nil, err
	}

	switch status.Data.Status {
	case statusComplete:
	case statusFailed:
		return nil, platform.Permanent(models.PlatformTiktok, op, fmt.Errorf("publish %s failed: %s", publishID, status.Data.FailReason))
	default:
		return nil, platform.Transient(models.PlatformTiktok, op, fmt.Errorf("publish %s still %s", publishID, status.Data.Status))
	}
	if len(status.Data.PublicPostIDs) == 0 {
		return nil, platform.Permanent(models.PlatformTiktok, op, fmt.Errorf("publish %s has no public video", publishID))
	}

	videoID := strconv.FormatInt(status.Data.PublicPostIDs[0], 10)
	query := transfer.TiktokVideoQueryRequest{Filters: transfer.TiktokVideoFilters{VideoIDs: []string{videoID}}}

	var videos transfer.TiktokVideoQueryResponse
	path := "/v2/video/query/?fields=id,share_url,view_count,like_count,comment_count,share_count"
	if err := a.postJSON(ctx, op, acc, path, query, &videos); err != nil {
		return nil, err
	}
	if err := envelopeError(op, videos.Error); err != nil {
		return nil, err
	}
	if len(videos.Data.Videos) == 0 {
		return nil, platform.Permanent(models.PlatformTiktok, op, fmt.Errorf("video %s not found", videoID))
	}

	v := videos.Data.Videos[0]
	return platform.Stats{
		platform.StatViews:    v.ViewCount,
		platform.StatLikes:    v.LikeCount,
		platform.StatComments: v.CommentCount,
		platform.StatShares:   v.ShareCount,
		"video_id":            v.ID,
		"share_url":           v.ShareURL,
	}, nil
}

// GetAccountAnalytics reports lifetime counters; the API has no date ranges.
func (a *Adapter) GetAccountAnalytics(ctx context.Context, acc *models.SocialAccount, start, end time.Time) (platform.Stats, error) {
	const op = "account analytics"

	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"/v2/user/info/?fields=open_id,follower_count,following_count,likes_count,video_count", nil)
	if err != nil {
		return nil, platform.Permanent(models.PlatformTiktok, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)

	var out transfer.TiktokUserInfoResponse
	if err := a.client.Do(ctx, op, req, &out); err != nil {
		return nil, err
	}
	if err := envelopeError(op, out.Error); err != nil {
		return nil, err
	}

	u := out.Data.User
	return platform.Stats{
		platform.StatLikes: u.LikesCount,
		"followers":        u.FollowerCount,
		"following":        u.FollowingCount,
		"video_count":      u.VideoCount,
	}, nil
}

func (a *Adapter) GetAudienceInsights(ctx context.Context, acc *models.SocialAccount) (models.Demographics, error) {
	return nil, platform.NotSupported(models.PlatformTiktok, "audience insights")
}

// RefreshAccessToken redeems the refresh token. TikTok rotates it on every use.
func (a *Adapter) RefreshAccessToken(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error) {
	const op = "refresh token"

	if acc.RefreshToken == "" {
		return nil, platform.CredentialExpired(models.PlatformTiktok, op, errors.New("account has no refresh token"))
	}

	data := url.Values{}
	data.Set("client_key", a.cfg.ClientKey)
	data.Set("client_secret", a.cfg.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", acc.RefreshToken)

	req, err := http.NewRequest(http.MethodPost, a.cfg.BaseURL+"/v2/oauth/token/", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, platform.Permanent(models.PlatformTiktok, op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out transfer.TiktokTokenResponse
	if err := a.client.Do(ctx, op, req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		if err := tokenError(op, out.Error, out.ErrorDescription); err != nil {
			return nil, err
		}
		return nil, platform.Permanent(models.PlatformTiktok, op, fmt.Errorf("%s: %s", out.Error, out.ErrorDescription))
	}
	if out.AccessToken == "" {
		return nil, platform.Permanent(models.PlatformTiktok, op, errors.New("no access_token in response"))
	}

	token := &models.AccountToken{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if out.ExpiresIn > 0 {
		exp := a.now().Add(time.Duration(out.ExpiresIn) * time.Second)
		token.ExpiresAt = &exp
	}
	return token, nil
}

func (a *Adapter) postJSON(ctx context.Context, op string, acc *models.SocialAccount, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return platform.Permanent(models.PlatformTiktok, op, err)
	}

	req, err := http.NewRequest(http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return platform.Permanent(models.PlatformTiktok, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	return a.client.Do(ctx, op, req, out)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
