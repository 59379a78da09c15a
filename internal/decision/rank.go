package decision

import (
	"math"
	"sort"
)

// ScoreResult is one ranked alternative.
type ScoreResult struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
	// Values holds the per-criterion contribution inputs: normalized values
	// for SAW, local priorities for full AHP.
	Values    []float64 `json:"values"`
	RawValues []float64 `json:"raw_values"`
}

// Rank orders alternatives by descending score. Ties keep input order; NaN
// scores sort last.
func Rank(dm *DecisionMatrix, scores []float64, values Matrix) []ScoreResult {
	results := make([]ScoreResult, len(scores))
	for i, score := range scores {
		results[i] = ScoreResult{
			ID:        dm.IDs[i],
			Name:      dm.Names[i],
			Score:     score,
			Values:    append([]float64(nil), values[i]...),
			RawValues: append([]float64(nil), dm.Values[i]...),
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		sa, sb := results[a].Score, results[b].Score
		if math.IsNaN(sb) {
			return !math.IsNaN(sa)
		}
		return sa > sb
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
