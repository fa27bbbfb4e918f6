package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type publishAttemptRepository struct {
	db *sql.DB
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

func (r *publishAttemptRepository) Create(ctx context.Context, a *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (post_id, account_id, attempt, error_message)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, a.PostID, a.AccountID, a.Attempt, a.ErrorMessage).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record attempt %d for post %d: %w", a.Attempt, a.PostID, err)
	}

	return id, nil
}

func (r *publishAttemptRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	query := `
		SELECT id, post_id, account_id, attempt, error_message, created_at
		FROM publish_attempts WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("list attempts for post %d: %w", postID, err)
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		var a models.PublishAttempt
		if err := rows.Scan(&a.ID, &a.PostID, &a.AccountID, &a.Attempt, &a.ErrorMessage, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("list attempts for post %d: %w", postID, err)
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}
