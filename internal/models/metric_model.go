package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MetricType string

const (
	MetricTypePost    MetricType = "post"
	MetricTypeAccount MetricType = "account"
)

type Metric struct {
	ID             int64           `db:"id" json:"id"`
	PostID         *int64          `db:"post_id" json:"post_id,omitempty"`
	AccountID      int64           `db:"account_id" json:"account_id"`
	MetricType     MetricType      `db:"metric_type" json:"metric_type"`
	Date           time.Time       `db:"date" json:"date"`
	Views          int64           `db:"views" json:"views"`
	Likes          int64           `db:"likes" json:"likes"`
	Comments       int64           `db:"comments" json:"comments"`
	Shares         int64           `db:"shares" json:"shares"`
	Impressions    int64           `db:"impressions" json:"impressions"`
	Reach          int64           `db:"reach" json:"reach"`
	EngagementRate decimal.Decimal `db:"engagement_rate" json:"engagement_rate"`
	Demographics   Demographics    `db:"demographics" json:"demographics,omitempty"`
	Metadata       Metadata        `db:"metadata" json:"metadata"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Metadata is a free-form JSONB column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	return scanJSON(src, m)
}

// Demographics maps a dimension (age, gender, country) to bucket shares.
type Demographics map[string]map[string]float64

func (d Demographics) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *Demographics) Scan(src any) error {
	return scanJSON(src, d)
}

func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
}
