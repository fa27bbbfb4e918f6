package models

import "time"

// PublishAttempt is one try at pushing a post to its platform. ErrorMessage is
// empty for the attempt that succeeded.
type PublishAttempt struct {
	ID           int64     `db:"id" json:"id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	AccountID    int64     `db:"account_id" json:"account_id"`
	Attempt      int       `db:"attempt" json:"attempt"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
