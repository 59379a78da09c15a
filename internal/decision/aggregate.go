package decision

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// AggregateGeometric combines several same-shaped comparison matrices, e.g.
// one per judge, by element-wise geometric mean. The diagonal of the result is
// forced to exactly 1.
func AggregateGeometric(matrices []Matrix) (Matrix, error) {
	if len(matrices) == 0 {
		return nil, dataErrorf("aggregate", "no matrices to aggregate")
	}
	n, err := squareSize("aggregate", matrices[0])
	if err != nil {
		return nil, err
	}
	for k, m := range matrices[1:] {
		size, err := squareSize("aggregate", m)
		if err != nil {
			return nil, err
		}
		if size != n {
			return nil, validationErrorf("aggregate", "matrix %d is %dx%d, want %dx%d", k+1, size, size, n, n)
		}
	}

	k := float64(len(matrices))
	cell := make([]float64, len(matrices))
	out := make(Matrix, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][j] = 1
				continue
			}
			for idx, m := range matrices {
				cell[idx] = m[i][j]
			}
			out[i][j] = math.Pow(floats.Prod(cell), 1/k)
		}
	}
	return out, nil
}
