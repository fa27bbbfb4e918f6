package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type metricRepository struct {
	db *sql.DB
}

func NewMetricRepository(db *sql.DB) MetricRepository {
	return &metricRepository{db: db}
}

func (r *metricRepository) Create(ctx context.Context, m *models.Metric) (int64, error) {
	query := `
		INSERT INTO metrics (
			post_id, account_id, metric_type, date,
			views, likes, comments, shares, impressions, reach,
			engagement_rate, demographics, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		m.PostID,
		m.AccountID,
		m.MetricType,
		m.Date,
		m.Views,
		m.Likes,
		m.Comments,
		m.Shares,
		m.Impressions,
		m.Reach,
		m.EngagementRate,
		m.Demographics,
		m.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert %s metric for account %d: %w", m.MetricType, m.AccountID, err)
	}

	return id, nil
}
