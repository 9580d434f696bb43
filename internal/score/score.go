// Package score turns criterion entries into a total score and a letter
// grade. Everything here is a pure function of its inputs.
package score

import (
	"math"

	"raggrader/internal/config"
	"raggrader/internal/result"
)

// Aggregate computes 100 * sum(raw/max * weight) / sum(weight) over the
// configured criteria. A criterion with no entry contributes 0. The result
// is clamped to [0, 100] and rounded to one decimal. Rubrics with zero
// total weight are rejected at config validation; here they score 0.
func Aggregate(entries []result.ScoreEntry, criteria []config.Criterion) float64 {
	byID := make(map[string]result.ScoreEntry, len(entries))
	for _, e := range entries {
		byID[e.CriterionID] = e
	}

	var weighted, totalWeight float64
	for _, c := range criteria {
		totalWeight += c.Weight
		e, ok := byID[c.ID]
		if !ok || c.MaxScore <= 0 {
			continue
		}
		raw := clamp(e.Raw, 0, c.MaxScore)
		weighted += raw / c.MaxScore * c.Weight
	}
	if totalWeight <= 0 {
		return 0
	}
	return round1(clamp(100*weighted/totalWeight, 0, 100))
}

// Letter maps a total onto the first threshold whose floor it meets.
// Thresholds are ordered by descending score; a total below every floor
// gets the last letter.
func Letter(total float64, thresholds []config.Threshold) string {
	for _, th := range thresholds {
		if total >= th.Score {
			return th.Letter
		}
	}
	if n := len(thresholds); n > 0 {
		return thresholds[n-1].Letter
	}
	return "F"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
