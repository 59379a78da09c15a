package decision

// Reconstruct builds the perfectly consistent comparison matrix a[i][j] =
// w[i]/w[j] from a weight vector. Entries whose denominator weight is zero are 0.
func Reconstruct(weights []float64) (Matrix, error) {
	w, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}
	n := len(w)
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if w[j] != 0 {
				m[i][j] = w[i] / w[j]
			}
		}
	}
	return m, nil
}

// FromWeights reconstructs a comparison matrix from weights and analyzes it.
// Used as a diagnostic when only weights, not the original judgments, are
// known; the resulting CR is ~0.
func FromWeights(weights []float64) (*ConsistencyMetrics, Matrix, error) {
	m, err := Reconstruct(weights)
	if err != nil {
		return nil, nil, err
	}
	cm, err := Analyze(m)
	if err != nil {
		return nil, nil, err
	}
	return cm, m, nil
}
