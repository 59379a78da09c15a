// Package decision implements the multi-criteria ranking engine: AHP weight
// derivation and consistency metrics, matrix aggregation, eligibility
// filtering, SAW scoring and full AHP scoring of loan applicants.
package decision

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense row-major matrix.
type Matrix [][]float64

// ConsistencyMetrics is the result of analyzing a pairwise comparison matrix.
type ConsistencyMetrics struct {
	Weights   []float64 `json:"weights"`
	LambdaMax float64   `json:"lambda_max"`
	CI        float64   `json:"ci"`
	CR        float64   `json:"cr"`
}

// Acceptable reports whether CR is within threshold. Advisory only; the engine
// never refuses to score on an inconsistent matrix.
func (c ConsistencyMetrics) Acceptable(threshold float64) bool {
	return c.CR <= threshold
}

// randomIndex holds Saaty's random consistency index by matrix order.
var randomIndex = map[int]float64{
	1: 0.00, 2: 0.00, 3: 0.58, 4: 0.90, 5: 1.12,
	6: 1.24, 7: 1.32, 8: 1.41, 9: 1.45, 10: 1.49,
}

// RandomIndex returns RI for an n×n matrix. Orders above 10 use 1.49.
func RandomIndex(n int) float64 {
	if ri, ok := randomIndex[n]; ok {
		return ri
	}
	if n > 10 {
		return 1.49
	}
	return 0
}

// Analyze derives the priority vector, principal eigenvalue, CI and CR of a
// square comparison matrix.
//
// The principal eigenvalue is the one with the greatest real part; on an exact
// tie the lowest index wins. The weight vector is the absolute real part of its
// eigenvector, normalized to sum to 1.
func Analyze(m Matrix) (*ConsistencyMetrics, error) {
	n, err := squareSize("analyze", m)
	if err != nil {
		return nil, err
	}

	var eig mat.Eigen
	if ok := eig.Factorize(mat.NewDense(n, n, m.flatten()), mat.EigenRight); !ok {
		return nil, dataErrorf("analyze", "eigen decomposition did not converge")
	}
	values := eig.Values(nil)
	principal := principalIndex(values)

	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = math.Abs(real(vectors.At(i, principal)))
	}
	if sum := floats.Sum(weights); sum > 0 {
		floats.Scale(1/sum, weights)
	}

	lambdaMax := real(values[principal])
	var ci float64
	if n > 1 {
		ci = (lambdaMax - float64(n)) / float64(n-1)
	}
	var cr float64
	if ri := RandomIndex(n); ri != 0 {
		cr = ci / ri
	}

	return &ConsistencyMetrics{
		Weights:   weights,
		LambdaMax: lambdaMax,
		CI:        ci,
		CR:        cr,
	}, nil
}

// principalIndex returns the index of the eigenvalue with the greatest real
// part. A strict comparison keeps the lowest index on ties.
func principalIndex(values []complex128) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if real(values[i]) > real(values[best]) {
			best = i
		}
	}
	return best
}

// squareSize checks that m is a non-empty square matrix of finite values and
// returns its order.
func squareSize(op string, m Matrix) (int, error) {
	n := len(m)
	if n == 0 {
		return 0, validationErrorf(op, "matrix is empty")
	}
	for i, row := range m {
		if len(row) != n {
			return 0, validationErrorf(op, "matrix is not square: row %d has %d columns, want %d", i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, validationErrorf(op, "matrix entry [%d][%d] is not finite", i, j)
			}
		}
	}
	return n, nil
}

func (m Matrix) flatten() []float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]float64, 0, len(m)*len(m[0]))
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// Column returns a copy of column j.
func (m Matrix) Column(j int) []float64 {
	col := make([]float64, len(m))
	for i, row := range m {
		col[i] = row[j]
	}
	return col
}

// Clone returns a deep copy of m.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
