package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT id, account_id, title, description, hashtags, media_path, status,
			scheduled_for, published_at, platform_post_id, video_url, failure_reason,
			metadata, created_at, updated_at
		FROM posts WHERE id = $1`

	var (
		post                                  models.Post
		platformPostID, videoURL, failureText sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&post.ID, &post.AccountID, &post.Title,
		&post.Description, pq.Array(&post.Hashtags), &post.MediaPath, &post.Status,
		&post.ScheduledFor, &post.PublishedAt, &platformPostID, &videoURL, &failureText,
		&post.Metadata, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}

	post.PlatformPostID = platformPostID.String
	post.VideoURL = videoURL.String
	post.FailureReason = failureText.String

	return &post, nil
}

func (r *postRepository) BeginProcessing(ctx context.Context, id int64) (bool, error) {
	from := make([]string, 0, len(models.PublishableStatuses))
	for _, s := range models.PublishableStatuses {
		from = append(from, string(s))
	}

	query := `
		UPDATE posts
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = ANY($3)
	`
	result, err := r.db.ExecContext(ctx, query, id, models.PostStatusProcessing, pq.Array(from))
	if err != nil {
		return false, fmt.Errorf("begin processing post %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin processing post %d: %w", id, err)
	}
	return affected == 1, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, outcome models.PublishOutcome) error {
	query := `
		UPDATE posts
		SET status = $2,
			platform_post_id = $3,
			video_url = NULLIF($4, ''),
			published_at = $5,
			failure_reason = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $6
	`
	return r.finish(ctx, id, query, id, models.PostStatusPublished, outcome.PlatformPostID,
		outcome.VideoURL, outcome.PublishedAt, models.PostStatusProcessing)
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE posts
		SET status = $2,
			failure_reason = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $4
	`
	return r.finish(ctx, id, query, id, models.PostStatusFailed, reason, models.PostStatusProcessing)
}

func (r *postRepository) finish(ctx context.Context, id int64, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update post %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post %d: %w", id, err)
	}
	if affected != 1 {
		return fmt.Errorf("update post %d: %w", id, ErrStaleTransition)
	}
	return nil
}
