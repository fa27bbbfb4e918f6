package instagram

import (
	"math"

	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/transfer"
)

var standardNames = map[string]string{
	"views":    platform.StatViews,
	"reach":    platform.StatReach,
	"likes":    platform.StatLikes,
	"comments": platform.StatComments,
	"shares":   platform.StatShares,
}

func insightStats(resp transfer.InstagramInsightsResponse) platform.Stats {
	stats := platform.Stats{}
	for _, in := range resp.Data {
		v, ok := insightValue(in)
		if !ok {
			continue
		}
		if key, std := standardNames[in.Name]; std {
			stats[key] = v
			continue
		}
		stats[in.Name] = v
	}
	return stats
}

func insightValue(in transfer.InstagramInsight) (any, bool) {
	if in.TotalValue != nil && in.TotalValue.Value != nil {
		return in.TotalValue.Value, true
	}
	if n := len(in.Values); n > 0 {
		return in.Values[n-1].Value, true
	}
	return nil, false
}

// breakdownShares turns follower counts per bucket into percentages.
func breakdownShares(resp transfer.InstagramInsightsResponse) map[string]float64 {
	counts := map[string]float64{}
	var total float64

	for _, in := range resp.Data {
		if in.TotalValue == nil {
			continue
		}
		for _, b := range in.TotalValue.Breakdowns {
			for _, r := range b.Results {
				if len(r.DimensionValues) == 0 || r.Value <= 0 {
					continue
				}
				counts[r.DimensionValues[0]] += r.Value
				total += r.Value
			}
		}
	}

	if total == 0 {
		return nil
	}
	for k, v := range counts {
		counts[k] = math.Round(v*10000/total) / 100
	}
	return counts
}
