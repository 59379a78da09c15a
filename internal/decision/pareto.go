package decision

// ParetoFrontier returns, in input order, the indices of alternatives not
// dominated by any other. a dominates b when a is at least as good on every
// criterion (higher for benefit, lower for cost) and strictly better on one.
// O(n^2) dominance check, fine for applicant batches.
func ParetoFrontier(m Matrix, benefit []bool) []int {
	frontier := []int{}
	for i := range m {
		dominated := false
		for j := range m {
			if i == j {
				continue
			}
			if dominates(m[j], m[i], benefit) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, i)
		}
	}
	return frontier
}

func dominates(a, b []float64, benefit []bool) bool {
	strictly := false
	for j := range a {
		better, worse := a[j] > b[j], a[j] < b[j]
		if benefit != nil && !benefit[j] {
			better, worse = worse, better
		}
		if worse {
			return false
		}
		if better {
			strictly = true
		}
	}
	return strictly
}
