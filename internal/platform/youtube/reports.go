package youtube

import (
	"math"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"google.golang.org/api/youtubeanalytics/v2"
)

// reportStats reads the first row of an undimensioned report into Stats keyed
// by column name.
func reportStats(resp *youtubeanalytics.QueryResponse) platform.Stats {
	stats := platform.Stats{}
	if resp == nil || len(resp.Rows) == 0 {
		return stats
	}

	row := resp.Rows[0]
	for i, col := range resp.ColumnHeaders {
		if col == nil || i >= len(row) {
			continue
		}
		stats[col.Name] = row[i]
	}
	return stats
}

func reportDemographics(resp *youtubeanalytics.QueryResponse) models.Demographics {
	demo := models.Demographics{}
	if resp == nil {
		return demo
	}

	idx := map[string]int{}
	for i, col := range resp.ColumnHeaders {
		if col != nil {
			idx[col.Name] = i
		}
	}
	ageCol, okAge := idx["ageGroup"]
	genderCol, okGender := idx["gender"]
	pctCol, okPct := idx["viewerPercentage"]
	if !okAge || !okGender || !okPct {
		return demo
	}

	age := map[string]float64{}
	gender := map[string]float64{}
	for _, row := range resp.Rows {
		if len(row) <= ageCol || len(row) <= genderCol || len(row) <= pctCol {
			continue
		}
		pct, ok := row[pctCol].(float64)
		if !ok {
			continue
		}
		a, _ := row[ageCol].(string)
		g, _ := row[genderCol].(string)
		age[strings.TrimPrefix(a, "age")] += pct
		gender[g] += pct
	}

	if len(age) > 0 {
		demo["age"] = round2(age)
		demo["gender"] = round2(gender)
	}
	return demo
}

func round2(m map[string]float64) map[string]float64 {
	for k, v := range m {
		m[k] = math.Round(v*100) / 100
	}
	return m
}
