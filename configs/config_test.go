package config

import (
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_URI", "postgres://postflow@localhost:5432/postflow?sslmode=disable")
	t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.WorkerConcurrency)
	assert.Equal(t, "@hourly", cfg.RefreshSchedule)
	assert.Equal(t, 24*time.Hour, cfg.AnalyticsLookback)
	assert.Equal(t, []models.Platform{models.PlatformMastodon}, cfg.RefreshExcluded)
	assert.Equal(t, []time.Duration{time.Hour, 24 * time.Hour, 168 * time.Hour}, cfg.MetricsFollowUps)
	assert.False(t, cfg.R2.Enabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("ANALYTICS_LOOKBACK", "48h")
	t.Setenv("REFRESH_EXCLUDED_PLATFORMS", "mastodon, instagram")
	t.Setenv("METRICS_FOLLOW_UPS", "30m")
	t.Setenv("TIKTOK_CLIENT_KEY", "ck")
	t.Setenv("R2_BUCKET_NAME", "media")
	t.Setenv("R2_ACCOUNT_ID", "acc")
	t.Setenv("R2_ACCESS_KEY", "ak")
	t.Setenv("R2_SECRET_KEY", "sk")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 48*time.Hour, cfg.AnalyticsLookback)
	assert.Equal(t, []models.Platform{models.PlatformMastodon, models.PlatformInstagram}, cfg.RefreshExcluded)
	assert.Equal(t, []time.Duration{30 * time.Minute}, cfg.MetricsFollowUps)
	assert.Equal(t, "ck", cfg.Platforms.TiktokClientKey)
	assert.True(t, cfg.R2.Enabled())
	assert.Equal(t, "media", cfg.R2.BucketName)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing postgres", map[string]string{"POSTGRES_URI": ""}},
		{"short secret", map[string]string{"SECRET_KEY": "short"}},
		{"unknown platform", map[string]string{"REFRESH_EXCLUDED_PLATFORMS": "myspace"}},
		{"bad follow up", map[string]string{"METRICS_FOLLOW_UPS": "soon"}},
		{"incomplete r2", map[string]string{"R2_BUCKET_NAME": "media"}},
		{"zero workers", map[string]string{"WORKER_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
