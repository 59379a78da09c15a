package decision

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// WeightSet is an ordered mapping of criterion name to weight.
type WeightSet struct {
	Names   []string  `json:"names"`
	Weights []float64 `json:"weights"`
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	return floats.Sum(w.Weights)
}

// Validate checks that every name has a weight and none are negative.
func (w WeightSet) Validate() error {
	if len(w.Names) == 0 {
		return dataErrorf("weights", "criteria set is empty")
	}
	if len(w.Names) != len(w.Weights) {
		return validationErrorf("weights", "%d criteria but %d weights", len(w.Names), len(w.Weights))
	}
	for i, v := range w.Weights {
		if v < 0 || math.IsNaN(v) {
			return validationErrorf("weights", "invalid weight %f for %q", v, w.Names[i])
		}
	}
	return nil
}

// Normalized returns a copy whose weights sum to 1.
func (w WeightSet) Normalized() (WeightSet, error) {
	if err := w.Validate(); err != nil {
		return WeightSet{}, err
	}
	norm, err := NormalizeWeights(w.Weights)
	if err != nil {
		return WeightSet{}, err
	}
	return WeightSet{Names: append([]string(nil), w.Names...), Weights: norm}, nil
}

// NormalizeWeights returns a copy of w scaled to sum to 1. A zero sum falls
// back to equal weights. Vectors already summing to 1 (within tolerance) are
// returned unscaled. Negative entries are rejected even when the sum is fine.
func NormalizeWeights(w []float64) ([]float64, error) {
	if len(w) == 0 {
		return nil, dataErrorf("normalize weights", "weight vector is empty")
	}
	for i, v := range w {
		if v < 0 {
			return nil, validationErrorf("normalize weights", "weight %d is negative (%f)", i, v)
		}
	}
	out := append([]float64(nil), w...)
	sum := floats.Sum(out)
	switch {
	case math.IsNaN(sum) || math.IsInf(sum, 0) || sum < 0:
		return nil, dataErrorf("normalize weights", "weights sum to %f, cannot normalize", sum)
	case sum == 0:
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
	case !sumsToOne(sum):
		floats.Scale(1/sum, out)
	}
	return out, nil
}

// sumsToOne mirrors the usual isclose(sum, 1) tolerance.
func sumsToOne(sum float64) bool {
	return scalar.EqualWithinAbsOrRel(sum, 1, 1e-8, 1e-5)
}
