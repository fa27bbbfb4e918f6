package models

import (
	"fmt"
	"time"
)

type Platform string

const (
	PlatformYoutube   Platform = "youtube"
	PlatformTiktok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformMastodon  Platform = "mastodon"
)

// Platforms lists every tag the pipeline knows about.
var Platforms = []Platform{PlatformYoutube, PlatformTiktok, PlatformInstagram, PlatformMastodon}

func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

func (p Platform) Valid() bool {
	_, err := ParsePlatform(string(p))
	return err == nil
}

type AccountStatus string

const (
	AccountStatusActive            AccountStatus = "active"
	AccountStatusReconnectRequired AccountStatus = "reconnect_required"
)

type SocialAccount struct {
	ID             int64         `db:"id" json:"id"`
	Platform       Platform      `db:"platform" json:"platform"`
	PlatformUserID string        `db:"platform_user_id" json:"platform_user_id"`
	Handle         string        `db:"handle" json:"handle"`
	AccessToken    string        `db:"access_token" json:"-"`
	RefreshToken   string        `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time    `db:"token_expires_at" json:"token_expires_at,omitempty"`
	Status         AccountStatus `db:"status" json:"status"`
	Metadata       Metadata      `db:"metadata" json:"metadata"`
	LastSyncedAt   *time.Time    `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// TokenExpired reports whether the access token has a known expiry at or before now.
// Accounts without an expiry hold non-expiring tokens.
func (a *SocialAccount) TokenExpired(now time.Time) bool {
	return a.TokenExpiresAt != nil && !a.TokenExpiresAt.After(now)
}

func (a *SocialAccount) NeedsReconnect() bool {
	return a.Status == AccountStatusReconnectRequired
}

// AccountToken is a refreshed credential set. An empty RefreshToken means the
// platform kept the previous one.
type AccountToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}
