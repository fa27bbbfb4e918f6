// Package analytics turns raw platform stats into Metric rows.
package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EngagementRate is 100*(likes+comments+shares)/views rounded half-up to two
// decimals, and 0 when there are no views.
func EngagementRate(views, likes, comments, shares int64) decimal.Decimal {
	if views <= 0 {
		return decimal.Zero
	}
	interactions := decimal.NewFromInt(likes).Add(decimal.NewFromInt(comments)).Add(decimal.NewFromInt(shares))
	return interactions.Mul(hundred).Div(decimal.NewFromInt(views)).Round(2)
}

type Observation struct {
	AccountID    int64
	PostID       *int64
	Type         models.MetricType
	Date         time.Time
	Stats        platform.Stats
	Demographics models.Demographics
}

// BuildMetric maps the standard keys onto counters, keeps every other key as
// metadata and derives the engagement rate. Negative or unparsable counters
// become 0.
func BuildMetric(o Observation) *models.Metric {
	m := &models.Metric{
		AccountID:    o.AccountID,
		PostID:       o.PostID,
		MetricType:   o.Type,
		Date:         o.Date,
		Demographics: o.Demographics,
		Metadata:     models.Metadata{},
	}

	counters := map[string]*int64{
		platform.StatViews:       &m.Views,
		platform.StatLikes:       &m.Likes,
		platform.StatComments:    &m.Comments,
		platform.StatShares:      &m.Shares,
		platform.StatImpressions: &m.Impressions,
		platform.StatReach:       &m.Reach,
	}

	for key, raw := range o.Stats {
		if dst, ok := counters[key]; ok {
			*dst = counter(raw)
			continue
		}
		m.Metadata[key] = raw
	}

	m.EngagementRate = EngagementRate(m.Views, m.Likes, m.Comments, m.Shares)
	return m
}

func counter(v any) int64 {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > math.MaxInt64 {
			return math.MaxInt64
		}
		n = int64(x)
	case float64:
		n = int64(math.Round(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			n = i
		} else if f, err := x.Float64(); err == nil {
			n = int64(math.Round(f))
		}
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		n = i
	}
	if n < 0 {
		return 0
	}
	return n
}
