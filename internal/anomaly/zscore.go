package anomaly

import (
	"math"
	"sort"
)

// ZScoreScorer is the built-in Scorer: a robust z-score model using per-column
// median and MAD. The score of a row is the negated largest absolute z-score
// across its columns, so higher means more normal, matching the Scorer
// contract. The bottom contamination fraction of rows is labeled anomalous.
//
// It stands in for an external isolation-forest model; swap in a real one by
// providing another Scorer implementation.
type ZScoreScorer struct{}

func (ZScoreScorer) ScoreBatch(features [][]float64, contamination float64) ([]float64, []bool, error) {
	n := len(features)
	scores := make([]float64, n)
	anomalous := make([]bool, n)
	if n == 0 {
		return scores, anomalous, nil
	}

	cols := len(features[0])
	medians := make([]float64, cols)
	mads := make([]float64, cols)
	for c := 0; c < cols; c++ {
		column := make([]float64, n)
		for r := 0; r < n; r++ {
			column[r] = features[r][c]
		}
		medians[c] = median(column)
		deviations := make([]float64, n)
		for r := 0; r < n; r++ {
			deviations[r] = math.Abs(column[r] - medians[c])
		}
		mads[c] = median(deviations)
	}

	for r := 0; r < n; r++ {
		worst := 0.0
		for c := 0; c < cols; c++ {
			scale := mads[c]
			if scale == 0 {
				// Degenerate column: any deviation from the median at all
				// counts, scaled by the median magnitude.
				scale = math.Max(math.Abs(medians[c]), 1)
			}
			z := math.Abs(features[r][c]-medians[c]) / scale
			if z > worst {
				worst = z
			}
		}
		scores[r] = -worst
	}

	// Label the bottom contamination fraction, but only rows that actually
	// deviate: a batch of identical rows has no anomalies at any rate.
	budget := int(math.Floor(contamination * float64(n)))
	if budget > 0 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return scores[order[i]] < scores[order[j]]
		})
		for _, idx := range order[:budget] {
			if scores[idx] < 0 {
				anomalous[idx] = true
			}
		}
	}

	return scores, anomalous, nil
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
