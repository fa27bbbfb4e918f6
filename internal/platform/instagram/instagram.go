// Package instagram publishes to Instagram professional accounts through the
// Graph API content publishing flow.
package instagram

import (
	"context"
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
	defaultBaseURL    = "https://graph.instagram.com"
	defaultAPIVersion = "v21.0"
)

type Config struct {
	BaseURL           string
	APIVersion        string
	PollInterval      time.Duration
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
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return &Adapter{
		cfg:    cfg,
		client: platform.NewClient(models.PlatformInstagram, cfg.HTTPClient, cfg.RequestsPerSecond, decodeError),
		media:  src,
		now:    time.Now,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformInstagram }

func (a *Adapter) Publish(ctx context.Context, acc *models.SocialAccount, post *models.Post) (*platform.PublishResult, error) {
	const op = "publish"

	params, err := a.containerParams(ctx, post)
	if err != nil {
		return nil, err
	}
	params.Set("caption", post.Caption())

	var container transfer.InstagramID
	if err := a.post(ctx, op, acc, "/"+acc.PlatformUserID+"/media", params, &container); err != nil {
		return nil, err
	}
	if container.ID == "" {
		return nil, platform.Permanent(models.PlatformInstagram, op, errors.New("no container id in response"))
	}

	if err := a.waitForContainer(ctx, acc, container.ID); err != nil {
		return nil, err
	}

	var published transfer.InstagramID
	publish := url.Values{"creation_id": {container.ID}}
	if err := a.post(ctx, op, acc, "/"+acc.PlatformUserID+"/media_publish", publish, &published); err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, platform.Permanent(models.PlatformInstagram, op, errors.New("no media id in response"))
	}

	result := &platform.PublishResult{PlatformPostID: published.ID}

	// The post is live at this point; a missing permalink must not fail it.
	var m transfer.InstagramMedia
	if err := a.get(ctx, op, acc, "/"+published.ID, url.Values{"fields": {"permalink"}}, &m); err == nil {
		result.VideoURL = m.Permalink
	}

	return result, nil
}

func (a *Adapter) containerParams(ctx context.Context, post *models.Post) (url.Values, error) {
	const op = "publish"

	obj, err := a.media.Open(ctx, post.MediaPath)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, platform.Permanent(models.PlatformInstagram, op, err)
		}
		return nil, platform.Transient(models.PlatformInstagram, op, err)
	}
	obj.Close()

	mediaURL, err := a.media.URL(ctx, post.MediaPath)
	if err != nil {
		return nil, platform.Permanent(models.PlatformInstagram, op, err)
	}

	switch {
	case obj.IsVideo():
		return url.Values{"media_type": {"REELS"}, "video_url": {mediaURL}}, nil
	case obj.IsImage():
		return url.Values{"image_url": {mediaURL}}, nil
	default:
		return nil, platform.Permanent(models.PlatformInstagram, op, fmt.Errorf("unsupported media type %q", obj.ContentType))
	}
}

// waitForContainer polls until the uploaded media is ready to publish. The
// caller's deadline bounds the wait.
func (a *Adapter) waitForContainer(ctx context.Context, acc *models.SocialAccount, id string) error {
	const op = "publish"

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var status transfer.InstagramContainerStatus
		if err := a.get(ctx, op, acc, "/"+id, url.Values{"fields": {"status_code,status"}}, &status); err != nil {
			return err
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return platform.Permanent(models.PlatformInstagram, op, fmt.Errorf("container %s %s: %s", id, status.StatusCode, status.Status))
		}

		select {
		case <-ctx.Done():
			return platform.Transient(models.PlatformInstagram, op, fmt.Errorf("container %s not ready: %w", id, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (a *Adapter) GetPostMetrics(ctx context.Context, acc *models.SocialAccount, mediaID string) (platform.Stats, error) {
	params := url.Values{"metric": {"views,reach,likes,comments,shares,saved,total_interactions"}}

	var out transfer.InstagramInsightsResponse
	if err := a.get(ctx, "post metrics", acc, "/"+mediaID+"/insights", params, &out); err != nil {
		return nil, err
	}
	return insightStats(out), nil
}

func (a *Adapter) GetAccountAnalytics(ctx context.Context, acc *models.SocialAccount, start, end time.Time) (platform.Stats, error) {
	params := url.Values{
		"metric":      {"views,reach,likes,comments,shares,saves,total_interactions,accounts_engaged"},
		"period":      {"day"},
		"metric_type": {"total_value"},
		"since":       {strconv.FormatInt(start.Unix(), 10)},
		"until":       {strconv.FormatInt(end.Unix(), 10)},
	}

	var out transfer.InstagramInsightsResponse
	if err := a.get(ctx, "account analytics", acc, "/"+acc.PlatformUserID+"/insights", params, &out); err != nil {
		return nil, err
	}
	return insightStats(out), nil
}

// GetAudienceInsights returns follower shares in percent per age bucket and gender.
func (a *Adapter) GetAudienceInsights(ctx context.Context, acc *models.SocialAccount) (models.Demographics, error) {
	demo := models.Demographics{}

	for _, dim := range []string{"age", "gender"} {
		params := url.Values{
			"metric":      {"follower_demographics"},
			"period":      {"lifetime"},
			"metric_type": {"total_value"},
			"breakdown":   {dim},
		}

		var out transfer.InstagramInsightsResponse
		if err := a.get(ctx, "audience insights", acc, "/"+acc.PlatformUserID+"/insights", params, &out); err != nil {
			return nil, err
		}

		if buckets := breakdownShares(out); len(buckets) > 0 {
			demo[dim] = buckets
		}
	}

	return demo, nil
}

// RefreshAccessToken extends a long-lived token. Instagram has no separate
// refresh token, so the stored one is left alone.
func (a *Adapter) RefreshAccessToken(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error) {
	const op = "refresh token"

	params := url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {acc.AccessToken},
	}
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"/refresh_access_token?"+params.Encode(), nil)
	if err != nil {
		return nil, platform.Permanent(models.PlatformInstagram, op, err)
	}

	var out transfer.InstagramRefreshResponse
	if err := a.client.Do(ctx, op, req, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, platform.Permanent(models.PlatformInstagram, op, errors.New("no access_token in response"))
	}

	token := &models.AccountToken{AccessToken: out.AccessToken}
	if out.ExpiresIn > 0 {
		exp := a.now().Add(time.Duration(out.ExpiresIn) * time.Second)
		token.ExpiresAt = &exp
	}
	return token, nil
}

func (a *Adapter) endpoint(path string) string {
	return a.cfg.BaseURL + "/" + a.cfg.APIVersion + path
}

func (a *Adapter) get(ctx context.Context, op string, acc *models.SocialAccount, path string, params url.Values, out any) error {
	params.Set("access_token", acc.AccessToken)

	req, err := http.NewRequest(http.MethodGet, a.endpoint(path)+"?"+params.Encode(), nil)
	if err != nil {
		return platform.Permanent(models.PlatformInstagram, op, err)
	}
	return a.client.Do(ctx, op, req, out)
}

func (a *Adapter) post(ctx context.Context, op string, acc *models.SocialAccount, path string, form url.Values, out any) error {
	form.Set("access_token", acc.AccessToken)

	req, err := http.NewRequest(http.MethodPost, a.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return platform.Permanent(models.PlatformInstagram, op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.client.Do(ctx, op, req, out)
}
