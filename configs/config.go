package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/spf13/viper"
)

type R2 struct {
	AccountID  string `mapstructure:"R2_ACCOUNT_ID"`
	AccessKey  string `mapstructure:"R2_ACCESS_KEY"`
	SecretKey  string `mapstructure:"R2_SECRET_KEY"`
	BucketName string `mapstructure:"R2_BUCKET_NAME"`
	Endpoint   string `mapstructure:"R2_ENDPOINT"`
	PublicURL  string `mapstructure:"R2_PUBLIC_URL"`
}

// Enabled reports whether media should be read from R2 instead of MEDIA_DIR.
func (r R2) Enabled() bool {
	return r.BucketName != ""
}

type Platforms struct {
	TiktokClientKey    string  `mapstructure:"TIKTOK_CLIENT_KEY"`
	TiktokClientSecret string  `mapstructure:"TIKTOK_CLIENT_SECRET"`
	GoogleClientID     string  `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string  `mapstructure:"GOOGLE_CLIENT_SECRET"`
	MastodonServer     string  `mapstructure:"MASTODON_SERVER"`
	RequestsPerSecond  float64 `mapstructure:"PLATFORM_REQUESTS_PER_SECOND"`
}

type Config struct {
	Env         string `mapstructure:"APP_ENV"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	PostgresURI string `mapstructure:"POSTGRES_URI"`
	RedisURI    string `mapstructure:"REDIS_URI"`
	SecretKey   string `mapstructure:"SECRET_KEY"`

	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	RefreshSchedule   string        `mapstructure:"REFRESH_SCHEDULE"`
	AnalyticsSchedule string        `mapstructure:"ANALYTICS_SCHEDULE"`
	AnalyticsLookback time.Duration `mapstructure:"ANALYTICS_LOOKBACK"`
	RefreshHorizon    time.Duration `mapstructure:"REFRESH_HORIZON"`

	// Parsed from comma-separated values.
	RefreshExcluded  []models.Platform `mapstructure:"-"`
	MetricsFollowUps []time.Duration   `mapstructure:"-"`

	MediaDir     string `mapstructure:"MEDIA_DIR"`
	MediaBaseURL string `mapstructure:"MEDIA_BASE_URL"`

	Platforms Platforms `mapstructure:",squash"`
	R2        R2        `mapstructure:",squash"`
}

const minSecretLength = 16

func LoadConfig() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("POSTGRES_URI", "")
	v.SetDefault("REDIS_URI", "redis://127.0.0.1:6379/0")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("REFRESH_SCHEDULE", "@hourly")
	v.SetDefault("ANALYTICS_SCHEDULE", "@daily")
	v.SetDefault("ANALYTICS_LOOKBACK", "24h")
	v.SetDefault("REFRESH_HORIZON", "24h")
	v.SetDefault("REFRESH_EXCLUDED_PLATFORMS", "mastodon")
	v.SetDefault("METRICS_FOLLOW_UPS", "1h,24h,168h")
	v.SetDefault("MEDIA_DIR", "./media")
	v.SetDefault("MEDIA_BASE_URL", "")
	v.SetDefault("TIKTOK_CLIENT_KEY", "")
	v.SetDefault("TIKTOK_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("MASTODON_SERVER", "")
	v.SetDefault("PLATFORM_REQUESTS_PER_SECOND", 5.0)
	v.SetDefault("R2_ACCOUNT_ID", "")
	v.SetDefault("R2_ACCESS_KEY", "")
	v.SetDefault("R2_SECRET_KEY", "")
	v.SetDefault("R2_BUCKET_NAME", "")
	v.SetDefault("R2_ENDPOINT", "")
	v.SetDefault("R2_PUBLIC_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	excluded, err := parsePlatforms(v.GetString("REFRESH_EXCLUDED_PLATFORMS"))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_EXCLUDED_PLATFORMS: %w", err)
	}
	cfg.RefreshExcluded = excluded

	followUps, err := parseDurations(v.GetString("METRICS_FOLLOW_UPS"))
	if err != nil {
		return nil, fmt.Errorf("METRICS_FOLLOW_UPS: %w", err)
	}
	cfg.MetricsFollowUps = followUps

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}
	if c.RedisURI == "" {
		errs = append(errs, errors.New("REDIS_URI is required"))
	}
	if len(c.SecretKey) < minSecretLength {
		errs = append(errs, fmt.Errorf("SECRET_KEY must be at least %d characters", minSecretLength))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if c.AnalyticsLookback <= 0 {
		errs = append(errs, errors.New("ANALYTICS_LOOKBACK must be positive"))
	}
	if c.R2.Enabled() && (c.R2.AccessKey == "" || c.R2.SecretKey == "" || (c.R2.AccountID == "" && c.R2.Endpoint == "")) {
		errs = append(errs, errors.New("R2 needs an access key, a secret key and an account id or endpoint"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePlatforms(s string) ([]models.Platform, error) {
	var out []models.Platform
	for _, part := range splitList(s) {
		p, err := models.ParsePlatform(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseDurations(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range splitList(s) {
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative delay %s", part)
		}
		out = append(out, d)
	}
	return out, nil
}
