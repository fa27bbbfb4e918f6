// Package mastodon posts statuses with attached media to a Mastodon server.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	gomastodon "github.com/mattn/go-mastodon"
)

// MetadataServer is the account metadata key holding the instance URL.
const MetadataServer = "server"

type Config struct {
	// Server is used for accounts that carry no instance URL of their own.
	Server       string
	ClientID     string
	ClientSecret string
	Visibility   string
	Transport    http.RoundTripper
}

type Adapter struct {
	cfg   Config
	media media.Source
}

func New(cfg Config, src media.Source) *Adapter {
	if cfg.Visibility == "" {
		cfg.Visibility = "public"
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &Adapter{cfg: cfg, media: src}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformMastodon }

func (a *Adapter) client(acc *models.SocialAccount, op string) (*gomastodon.Client, error) {
	server := a.cfg.Server
	if s, ok := acc.Metadata[MetadataServer].(string); ok && s != "" {
		server = s
	}
	if server == "" {
		return nil, platform.Permanent(models.PlatformMastodon, op, errors.New("no server configured for account"))
	}

	c := gomastodon.NewClient(&gomastodon.Config{
		Server:       strings.TrimRight(server, "/"),
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		AccessToken:  acc.AccessToken,
	})
	c.Transport = &classifyingTransport{base: a.cfg.Transport, op: op}
	c.Timeout = 2 * time.Minute
	return c, nil
}

func (a *Adapter) Publish(ctx context.Context, acc *models.SocialAccount, post *models.Post) (*platform.PublishResult, error) {
	const op = "publish"

	c, err := a.client(acc, op)
	if err != nil {
		return nil, err
	}

	toot := &gomastodon.Toot{
		Status:     post.Caption(),
		Visibility: a.cfg.Visibility,
	}

	if post.MediaPath != "" {
		obj, err := a.media.Open(ctx, post.MediaPath)
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				return nil, platform.Permanent(models.PlatformMastodon, op, err)
			}
			return nil, platform.Transient(models.PlatformMastodon, op, err)
		}
		defer obj.Close()

		if !obj.IsVideo() && !obj.IsImage() {
			return nil, platform.Permanent(models.PlatformMastodon, op, fmt.Errorf("unsupported media type %q", obj.ContentType))
		}

		attachment, err := c.UploadMediaFromReader(ctx, obj.Body)
		if err != nil {
			return nil, classify(op, err)
		}
		toot.MediaIDs = []gomastodon.ID{attachment.ID}
	}

	status, err := c.PostStatus(ctx, toot)
	if err != nil {
		return nil, classify(op, err)
	}

	return &platform.PublishResult{
		PlatformPostID: string(status.ID),
		VideoURL:       status.URL,
	}, nil
}

func (a *Adapter) GetPostMetrics(ctx context.Context, acc *models.SocialAccount, statusID string) (platform.Stats, error) {
	const op = "post metrics"

	c, err := a.client(acc, op)
	if err != nil {
		return nil, err
	}

	status, err := c.GetStatus(ctx, gomastodon.ID(statusID))
	if err != nil {
		return nil, classify(op, err)
	}

	return platform.Stats{
		platform.StatLikes:    status.FavouritesCount,
		platform.StatComments: status.RepliesCount,
		platform.StatShares:   status.ReblogsCount,
	}, nil
}

// GetAccountAnalytics reports current counters. Mastodon keeps no history.
func (a *Adapter) GetAccountAnalytics(ctx context.Context, acc *models.SocialAccount, start, end time.Time) (platform.Stats, error) {
	const op = "account analytics"

	c, err := a.client(acc, op)
	if err != nil {
		return nil, err
	}

	me, err := c.GetAccountCurrentUser(ctx)
	if err != nil {
		return nil, classify(op, err)
	}

	return platform.Stats{
		"followers":      me.FollowersCount,
		"following":      me.FollowingCount,
		"statuses_count": me.StatusesCount,
	}, nil
}

func (a *Adapter) GetAudienceInsights(ctx context.Context, acc *models.SocialAccount) (models.Demographics, error) {
	return nil, platform.NotSupported(models.PlatformMastodon, "audience insights")
}

// RefreshAccessToken is not supported: Mastodon app tokens do not expire.
func (a *Adapter) RefreshAccessToken(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error) {
	return nil, platform.NotSupported(models.PlatformMastodon, "refresh token")
}

// classifyingTransport turns error responses into platform errors before
// go-mastodon formats them into plain strings.
type classifyingTransport struct {
	base http.RoundTripper
	op   string
}

func (t *classifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, platform.FromTransport(models.PlatformMastodon, t.op, err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	return nil, platform.FromStatus(models.PlatformMastodon, t.op, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
}

func classify(op string, err error) error {
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return platform.FromTransport(models.PlatformMastodon, op, err)
	}
	return platform.Permanent(models.PlatformMastodon, op, err)
}
