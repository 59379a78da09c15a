package decision

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// AHPResult is the full-AHP output.
type AHPResult struct {
	Scores []float64 `json:"scores"`
	// LocalPriorities is n_alt × n_crit.
	LocalPriorities   Matrix               `json:"local_priorities"`
	Weights           []float64            `json:"weights"`
	Alternatives      []ConsistencyMetrics `json:"alternative_consistency"`
	MeanAlternativeCR float64              `json:"mean_alternative_cr"`
	Pairwise          []Matrix             `json:"pairwise,omitempty"`
}

// AHPFull derives, for each criterion, local priorities of the alternatives
// from a ratio-built pairwise matrix, then aggregates them with the criteria
// weights. Per-criterion inconsistency is reported, never enforced.
func (s *Scorer) AHPFull(m Matrix, weights []float64, benefit []bool) (*AHPResult, error) {
	nAlt, nCrit, err := decisionShape("ahp", m)
	if err != nil {
		return nil, err
	}
	benefit, w, err := prepareCriteria("ahp", nCrit, weights, benefit)
	if err != nil {
		return nil, err
	}

	local := make(Matrix, nAlt)
	for i := range local {
		local[i] = make([]float64, nCrit)
	}
	result := &AHPResult{
		Weights:      w,
		Alternatives: make([]ConsistencyMetrics, nCrit),
		Pairwise:     make([]Matrix, nCrit),
	}
	crs := make(stats.Float64Data, nCrit)

	for j := 0; j < nCrit; j++ {
		pair := s.AlternativePairwise(m.Column(j), benefit[j])
		cm, err := Analyze(pair)
		if err != nil {
			return nil, err
		}
		for i, p := range cm.Weights {
			local[i][j] = p
		}
		if !cm.Acceptable(s.opts.ConsistencyThreshold) {
			s.logger.Debug("alternative comparisons inconsistent", "criterion", j, "cr", cm.CR)
		}
		result.Pairwise[j] = pair
		result.Alternatives[j] = *cm
		crs[j] = cm.CR
	}

	meanCR, err := stats.Mean(crs)
	if err != nil {
		return nil, dataErrorf("ahp", "mean alternative CR: %v", err)
	}

	result.Scores = make([]float64, nAlt)
	for i, row := range local {
		result.Scores[i] = floats.Dot(row, w)
	}
	result.LocalPriorities = local
	result.MeanAlternativeCR = meanCR
	return result, nil
}

// AlternativePairwise builds an alternative-by-alternative comparison matrix
// from one criterion's raw values. For a benefit criterion pair[i][k] =
// v[i]/v[k]; for a cost criterion the ratio is inverted so a larger priority
// still means better. Two zeros compare as 1; a lone zero denominator becomes
// the dominance sentinel.
//
// A zero numerator leaves a 0 entry, so the matrix is no longer reciprocal.
// Its principal eigenvalue then drops below n and the reported CR is
// negative; such a CR says nothing about judgment quality.
func (s *Scorer) AlternativePairwise(values []float64, benefit bool) Matrix {
	n := len(values)
	pair := make(Matrix, n)
	for i := range pair {
		pair[i] = make([]float64, n)
		for k := range pair[i] {
			num, den := values[i], values[k]
			if !benefit {
				num, den = den, num
			}
			switch {
			case num == 0 && den == 0:
				pair[i][k] = 1
			case den == 0:
				pair[i][k] = s.opts.DominanceSentinel
			default:
				pair[i][k] = num / den
			}
		}
	}
	return pair
}
