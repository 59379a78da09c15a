package decision

import (
	"gonum.org/v1/gonum/floats"
)

// SAWResult is the Simple Additive Weighting output.
type SAWResult struct {
	Scores     []float64 `json:"scores"`
	Normalized Matrix    `json:"normalized"`
	Weights    []float64 `json:"weights"`
}

// SAW normalizes m per criterion and scores each alternative as the weighted
// sum of its normalized row.
//
// Benefit columns are divided by the column max (divisor 1 when the max is 0).
// Cost columns become min/value after zero values are replaced by the cost
// epsilon, so a zero cost scores 1 and the ordering is kept.
// benefit may be nil, meaning every criterion is a benefit.
func (s *Scorer) SAW(m Matrix, weights []float64, benefit []bool) (*SAWResult, error) {
	nAlt, nCrit, err := decisionShape("saw", m)
	if err != nil {
		return nil, err
	}
	benefit, w, err := prepareCriteria("saw", nCrit, weights, benefit)
	if err != nil {
		return nil, err
	}

	norm := make(Matrix, nAlt)
	for i := range norm {
		norm[i] = make([]float64, nCrit)
	}
	for j := 0; j < nCrit; j++ {
		col := m.Column(j)
		if benefit[j] {
			maxv := floats.Max(col)
			if maxv == 0 {
				maxv = 1
			}
			for i, v := range col {
				norm[i][j] = v / maxv
			}
			continue
		}
		for i, v := range col {
			if v == 0 {
				col[i] = s.opts.CostEpsilon
			}
		}
		minv := floats.Min(col)
		for i, v := range col {
			norm[i][j] = minv / v
		}
	}

	scores := make([]float64, nAlt)
	for i, row := range norm {
		scores[i] = floats.Dot(row, w)
	}
	return &SAWResult{Scores: scores, Normalized: norm, Weights: w}, nil
}

// decisionShape checks that m is a non-empty rectangular matrix.
func decisionShape(op string, m Matrix) (int, int, error) {
	if len(m) == 0 {
		return 0, 0, dataErrorf(op, "decision matrix has no alternatives")
	}
	nCrit := len(m[0])
	if nCrit == 0 {
		return 0, 0, dataErrorf(op, "decision matrix has no criteria")
	}
	for i, row := range m {
		if len(row) != nCrit {
			return 0, 0, validationErrorf(op, "row %d has %d values, want %d", i, len(row), nCrit)
		}
	}
	return len(m), nCrit, nil
}

// prepareCriteria validates weight and direction lengths against nCrit and
// returns the benefit flags (defaulted) and normalized weights.
func prepareCriteria(op string, nCrit int, weights []float64, benefit []bool) ([]bool, []float64, error) {
	if len(weights) != nCrit {
		return nil, nil, validationErrorf(op, "%d weights for %d criteria", len(weights), nCrit)
	}
	if benefit == nil {
		benefit = make([]bool, nCrit)
		for j := range benefit {
			benefit[j] = true
		}
	}
	if len(benefit) != nCrit {
		return nil, nil, validationErrorf(op, "%d benefit flags for %d criteria", len(benefit), nCrit)
	}
	w, err := NormalizeWeights(weights)
	if err != nil {
		return nil, nil, err
	}
	return benefit, w, nil
}
