// Package youtube uploads videos with the YouTube Data API and reads channel
// analytics from the YouTube Analytics API.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"
)

const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 5000
	audienceWindow      = 28 * 24 * time.Hour
	dateLayout          = "2006-01-02"
)

type Config struct {
	ClientID      string
	ClientSecret  string
	CategoryID    string
	PrivacyStatus string
	// Endpoint overrides, used against test servers.
	TokenURL          string
	DataEndpoint      string
	AnalyticsEndpoint string
	HTTPClient        *http.Client
}

type Adapter struct {
	cfg   Config
	oauth *oauth2.Config
	media media.Source
	now   func() time.Time
}

func New(cfg Config, src media.Source) *Adapter {
	if cfg.CategoryID == "" {
		cfg.CategoryID = "22"
	}
	if cfg.PrivacyStatus == "" {
		cfg.PrivacyStatus = "public"
	}

	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &Adapter{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes: []string{
				youtube.YoutubeUploadScope,
				youtube.YoutubeReadonlyScope,
				youtubeanalytics.YtAnalyticsReadonlyScope,
			},
		},
		media: src,
		now:   time.Now,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformYoutube }

// oauthContext carries the base HTTP client to the oauth2 package.
func (a *Adapter) oauthContext(ctx context.Context) context.Context {
	if a.cfg.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
}

func (a *Adapter) authorizedClient(ctx context.Context, acc *models.SocialAccount) *http.Client {
	return oauth2.NewClient(a.oauthContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: acc.AccessToken}))
}

func (a *Adapter) dataService(ctx context.Context, acc *models.SocialAccount) (*youtube.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(a.authorizedClient(ctx, acc))}
	if a.cfg.DataEndpoint != "" {
		opts = append(opts, option.WithEndpoint(a.cfg.DataEndpoint))
	}
	return youtube.NewService(ctx, opts...)
}

func (a *Adapter) analyticsService(ctx context.Context, acc *models.SocialAccount) (*youtubeanalytics.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(a.authorizedClient(ctx, acc))}
	if a.cfg.AnalyticsEndpoint != "" {
		opts = append(opts, option.WithEndpoint(a.cfg.AnalyticsEndpoint))
	}
	return youtubeanalytics.NewService(ctx, opts...)
}

func (a *Adapter) Publish(ctx context.Context, acc *models.SocialAccount, post *models.Post) (*platform.PublishResult, error) {
	const op = "publish"

	obj, err := a.media.Open(ctx, post.MediaPath)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, platform.Permanent(models.PlatformYoutube, op, err)
		}
		return nil, platform.Transient(models.PlatformYoutube, op, err)
	}
	defer obj.Close()

	if !obj.IsVideo() {
		return nil, platform.Permanent(models.PlatformYoutube, op, fmt.Errorf("media %q is %q, not a video", post.MediaPath, obj.ContentType))
	}

	svc, err := a.dataService(ctx, acc)
	if err != nil {
		return nil, platform.Permanent(models.PlatformYoutube, op, err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       videoTitle(post),
			Description: truncateRunes(post.Caption(), maxDescriptionRunes),
			Tags:        tags(post.Hashtags),
			CategoryId:  a.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: a.cfg.PrivacyStatus,
		},
	}

	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(obj.Body).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}
	if resp.Id == "" {
		return nil, platform.Permanent(models.PlatformYoutube, op, errors.New("upload returned no video id"))
	}

	return &platform.PublishResult{
		PlatformPostID: resp.Id,
		VideoURL:       "https://youtu.be/" + resp.Id,
	}, nil
}

func (a *Adapter) GetPostMetrics(ctx context.Context, acc *models.SocialAccount, videoID string) (platform.Stats, error) {
	const op = "post metrics"

	svc, err := a.dataService(ctx, acc)
	if err != nil {
		return nil, platform.Permanent(models.PlatformYoutube, op, err)
	}

	resp, err := svc.Videos.List([]string{"statistics"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, platform.Permanent(models.PlatformYoutube, op, fmt.Errorf("video %s not found", videoID))
	}

	s := resp.Items[0].Statistics
	return platform.Stats{
		platform.StatViews:    s.ViewCount,
		platform.StatLikes:    s.LikeCount,
		platform.StatComments: s.CommentCount,
		"favorites":           s.FavoriteCount,
	}, nil
}

func (a *Adapter) GetAccountAnalytics(ctx context.Context, acc *models.SocialAccount, start, end time.Time) (platform.Stats, error) {
	const op = "account analytics"

	svc, err := a.analyticsService(ctx, acc)
	if err != nil {
		return nil, platform.Permanent(models.PlatformYoutube, op, err)
	}

	resp, err := svc.Reports.Query().
		Ids("channel==MINE").
		StartDate(start.UTC().Format(dateLayout)).
		EndDate(end.UTC().Format(dateLayout)).
		Metrics("views,likes,comments,shares,estimatedMinutesWatched,subscribersGained").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(op, err)
	}

	return reportStats(resp), nil
}

// GetAudienceInsights returns viewer percentages by age group and gender over
// the last 28 days.
func (a *Adapter) GetAudienceInsights(ctx context.Context, acc *models.SocialAccount) (models.Demographics, error) {
	const op = "audience insights"

	svc, err := a.analyticsService(ctx, acc)
	if err != nil {
		return nil, platform.Permanent(models.PlatformYoutube, op, err)
	}

	end := a.now().UTC()
	resp, err := svc.Reports.Query().
		Ids("channel==MINE").
		StartDate(end.Add(-audienceWindow).Format(dateLayout)).
		EndDate(end.Format(dateLayout)).
		Dimensions("ageGroup,gender").
		Metrics("viewerPercentage").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(op, err)
	}

	return reportDemographics(resp), nil
}

func (a *Adapter) RefreshAccessToken(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error) {
	const op = "refresh token"

	if acc.RefreshToken == "" {
		return nil, platform.CredentialExpired(models.PlatformYoutube, op, errors.New("account has no refresh token"))
	}

	tok, err := a.oauth.TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: acc.RefreshToken}).Token()
	if err != nil {
		return nil, classify(op, err)
	}

	token := &models.AccountToken{AccessToken: tok.AccessToken}
	if tok.RefreshToken != acc.RefreshToken {
		token.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		token.ExpiresAt = &exp
	}
	return token, nil
}

func videoTitle(post *models.Post) string {
	title := strings.TrimSpace(post.Title)
	if title == "" {
		title = strings.TrimSpace(strings.SplitN(post.Description, "\n", 2)[0])
	}
	if title == "" {
		title = "Untitled"
	}
	return truncateRunes(title, maxTitleRunes)
}

func tags(hashtags []string) []string {
	var out []string
	for _, h := range hashtags {
		if t := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(h), "#")); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
