package audit

import (
	"math"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// Score aggregates results into an integer in [0,100]:
// round(100 * Σ(score·weight) / Σ(weight)) over results that carry a numeric
// score and a positive weight. With no such result the score is 100.
func Score(results []bundle.AuditResult) int {
	var sum, weights float64
	for _, r := range results {
		if r.NumericScore == nil || r.Weight <= 0 || math.IsNaN(*r.NumericScore) {
			continue
		}
		sum += clamp01(*r.NumericScore) * r.Weight
		weights += r.Weight
	}
	if weights == 0 {
		return 100
	}
	return clampScore(math.Round(100 * sum / weights))
}

// BundleScore is the mean of the entry-point scores, capped at 100. A build
// without entry points scores 100.
func BundleScore(scores []int) int {
	if len(scores) == 0 {
		return 100
	}
	var total float64
	for _, s := range scores {
		total += float64(s)
	}
	return clampScore(math.Round(total / float64(len(scores))))
}

// ScoreBetween maps value linearly onto [0,1]: good or better scores 1, bad
// or worse scores 0. Works for either direction of good and bad.
func ScoreBetween(value, good, bad float64) float64 {
	if good == bad {
		if value <= good {
			return 1
		}
		return 0
	}
	return clamp01(1 - (value-good)/(bad-good))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v)
}
