package models

import (
	"fmt"
	"strings"
	"time"
)

type PostStatus string

const (
	PostStatusDraft      PostStatus = "draft"
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusProcessing PostStatus = "processing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

// transitions is the post lifecycle. failed -> processing only happens when an
// operator re-enqueues a failed post.
var transitions = map[PostStatus][]PostStatus{
	PostStatusDraft:      {PostStatusProcessing},
	PostStatusScheduled:  {PostStatusProcessing},
	PostStatusFailed:     {PostStatusProcessing},
	PostStatusProcessing: {PostStatusPublished, PostStatusFailed},
}

// PublishableStatuses are the states a publish job may start from.
var PublishableStatuses = []PostStatus{PostStatusDraft, PostStatusScheduled, PostStatusFailed}

func (s PostStatus) CanTransition(to PostStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

type Post struct {
	ID             int64      `db:"id" json:"id"`
	AccountID      int64      `db:"account_id" json:"account_id"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Hashtags       []string   `db:"hashtags" json:"hashtags"`
	MediaPath      string     `db:"media_path" json:"media_path"`
	Status         PostStatus `db:"status" json:"status"`
	ScheduledFor   *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
	PlatformPostID string     `db:"platform_post_id" json:"platform_post_id,omitempty"`
	VideoURL       string     `db:"video_url" json:"video_url,omitempty"`
	FailureReason  string     `db:"failure_reason" json:"failure_reason,omitempty"`
	Metadata       Metadata   `db:"metadata" json:"metadata"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Caption joins the description and hashtags the way most platforms expect them.
func (p *Post) Caption() string {
	if len(p.Hashtags) == 0 {
		return p.Description
	}
	tags := make([]string, 0, len(p.Hashtags))
	for _, tag := range p.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	if p.Description == "" {
		return strings.Join(tags, " ")
	}
	return p.Description + "\n\n" + strings.Join(tags, " ")
}

func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished && p.PlatformPostID != ""
}

// CheckInvariant verifies that status, platform id and publish time agree.
func (p *Post) CheckInvariant() error {
	published := p.Status == PostStatusPublished
	if published != (p.PlatformPostID != "") {
		return fmt.Errorf("post %d: status %s with platform_post_id %q", p.ID, p.Status, p.PlatformPostID)
	}
	if published != (p.PublishedAt != nil) {
		return fmt.Errorf("post %d: status %s with published_at set=%t", p.ID, p.Status, p.PublishedAt != nil)
	}
	return nil
}

// PublishOutcome is what the publish job writes back on success.
type PublishOutcome struct {
	PlatformPostID string
	VideoURL       string
	PublishedAt    time.Time
}
