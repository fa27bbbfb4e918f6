package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var account = &models.SocialAccount{ID: 2, Platform: models.PlatformYoutube, AccessToken: "ya29.old", RefreshToken: "1//refresh"}

var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00}

func newTestAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video.mp4"), append(mp4Header, []byte("frames")...), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("not a video"), 0o644))

	a := New(Config{
		ClientID:          "client",
		ClientSecret:      "secret",
		TokenURL:          srv.URL + "/token",
		DataEndpoint:      srv.URL + "/",
		AnalyticsEndpoint: srv.URL + "/",
		HTTPClient:        srv.Client(),
	}, media.NewLocalSource(dir, ""))
	a.now = func() time.Time { return time.Date(2024, 6, 29, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestPublish(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/youtube/v3/videos") {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			return
		}
		assert.Equal(t, "Bearer ya29.old", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"title":"Launch day"`)
		assert.Contains(t, string(body), "frames")
		fmt.Fprint(w, `{"id":"vid123","snippet":{"title":"Launch day"}}`)
	})

	res, err := a.Publish(context.Background(), account, &models.Post{
		Title:       "Launch day",
		Description: "We shipped",
		Hashtags:    []string{"#go"},
		MediaPath:   "video.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, "vid123", res.PlatformPostID)
	assert.Equal(t, "https://youtu.be/vid123", res.VideoURL)
}

func TestPublishRejectsNonVideo(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})

	_, err := a.Publish(context.Background(), account, &models.Post{MediaPath: "doc.txt"})
	assert.ErrorIs(t, err, platform.ErrPermanent)
	assert.False(t, platform.IsRetryable(err))
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"quota", http.StatusForbidden, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","domain":"youtube.quota"}]}}`, platform.ErrTransient},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"nope","errors":[{"reason":"forbidden"}]}}`, platform.ErrPermanent},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials"}}`, platform.ErrCredentialExpired},
		{"backend", http.StatusInternalServerError, `{"error":{"code":500,"message":"backendError"}}`, platform.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := a.GetPostMetrics(context.Background(), account, "vid123")
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestGetPostMetrics(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid123", r.URL.Query().Get("id"))
		assert.Equal(t, "statistics", r.URL.Query().Get("part"))
		fmt.Fprint(w, `{"items":[{"id":"vid123","statistics":{"viewCount":"1000","likeCount":"50","commentCount":"20","favoriteCount":"0"}}]}`)
	})

	stats, err := a.GetPostMetrics(context.Background(), account, "vid123")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), stats[platform.StatViews])
	assert.Equal(t, uint64(50), stats[platform.StatLikes])
	assert.Equal(t, uint64(20), stats[platform.StatComments])
}

func TestGetPostMetricsDeletedVideo(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	})
	_, err := a.GetPostMetrics(context.Background(), account, "gone")
	assert.ErrorIs(t, err, platform.ErrPermanent)
}

func TestGetAccountAnalytics(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v2/reports", r.URL.Path)
		assert.Equal(t, "channel==MINE", q.Get("ids"))
		assert.Equal(t, "2024-06-28", q.Get("startDate"))
		assert.Equal(t, "2024-06-29", q.Get("endDate"))
		fmt.Fprint(w, `{"columnHeaders":[{"name":"views"},{"name":"likes"},{"name":"comments"},{"name":"shares"},{"name":"subscribersGained"}],
			"rows":[[1000,50,20,10,3]]}`)
	})

	end := a.now()
	stats, err := a.GetAccountAnalytics(context.Background(), account, end.Add(-24*time.Hour), end)
	require.NoError(t, err)
	assert.Equal(t, float64(1000), stats[platform.StatViews])
	assert.Equal(t, float64(10), stats[platform.StatShares])
	assert.Equal(t, float64(3), stats["subscribersGained"])
}

func TestGetAudienceInsights(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ageGroup,gender", r.URL.Query().Get("dimensions"))
		fmt.Fprint(w, `{"columnHeaders":[{"name":"ageGroup"},{"name":"gender"},{"name":"viewerPercentage"}],
			"rows":[["age18-24","female",20.5],["age18-24","male",30],["age25-34","female",49.5]]}`)
	})

	demo, err := a.GetAudienceInsights(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"18-24": 50.5, "25-34": 49.5}, demo["age"])
	assert.Equal(t, map[string]float64{"female": 70, "male": 30}, demo["gender"])
}

func TestRefreshAccessToken(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "1//refresh", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.new","expires_in":3599,"token_type":"Bearer"}`)
	})

	tok, err := a.RefreshAccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "ya29.new", tok.AccessToken)
	assert.Empty(t, tok.RefreshToken, "google keeps the refresh token")
	require.NotNil(t, tok.ExpiresAt)
	assert.True(t, tok.ExpiresAt.After(time.Now()))
}

func TestRefreshInvalidGrant(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
	})

	_, err := a.RefreshAccessToken(context.Background(), account)
	assert.ErrorIs(t, err, platform.ErrCredentialExpired)
	assert.False(t, platform.IsRetryable(err))
}
