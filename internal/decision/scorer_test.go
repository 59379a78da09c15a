package decision

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer() *Scorer {
	return NewScorer(DefaultOptions(), nil)
}

func loanCriteria() []Criterion {
	return []Criterion{
		{Name: "Usia", Weight: 0.1},
		{Name: "Pendapatan", Weight: 0.4},
		{Name: "Pekerjaan", Weight: 0.3},
		{Name: "Jaminan", Weight: 0.2},
	}
}

func applicant(id string, age, income, job, collateral interface{}) Record {
	return Record{
		ID:   id,
		Name: "Applicant " + id,
		Attributes: map[string]interface{}{
			FieldAge:        age,
			FieldIncome:     income,
			FieldJob:        job,
			FieldCollateral: collateral,
		},
	}
}

func loanApplicants() []Record {
	return []Record{
		applicant("A", 2, 4000000, 3, 2),
		applicant("B", 1, 6000000, 4, 4),
		applicant("C", 3, 2000000, 1, 1),
	}
}

func ids(results []ScoreResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestSAWScaleInvariance(t *testing.T) {
	s := newTestScorer()
	m := Matrix{{2, 4000000, 3, 2}, {1, 6000000, 4, 4}, {3, 2000000, 1, 1}}
	benefit := []bool{false, true, true, true}

	a, err := s.SAW(m, []float64{0.1, 0.4, 0.3, 0.2}, benefit)
	require.NoError(t, err)
	b, err := s.SAW(m, []float64{0.3, 1.2, 0.9, 0.6}, benefit)
	require.NoError(t, err)
	c, err := s.SAW(m, []float64{10, 40, 30, 20}, benefit)
	require.NoError(t, err)

	assert.InDeltaSlice(t, a.Scores, b.Scores, 1e-12)
	assert.InDeltaSlice(t, a.Scores, c.Scores, 1e-12)
}

func TestSAWBenefitColumnBounds(t *testing.T) {
	s := newTestScorer()
	m := Matrix{{3, 0}, {7, 0}, {5, 0}, {7, 0}}

	res, err := s.SAW(m, []float64{1, 1}, nil)
	require.NoError(t, err)

	for i, row := range res.Normalized {
		assert.GreaterOrEqual(t, row[0], 0.0)
		assert.LessOrEqual(t, row[0], 1.0)
		assert.Equal(t, 0.0, row[1], "all-zero column divides by 1, row %d", i)
	}
	assert.Equal(t, 1.0, res.Normalized[1][0])
	assert.Equal(t, 1.0, res.Normalized[3][0])
}

func TestSAWCostColumn(t *testing.T) {
	s := newTestScorer()
	res, err := s.SAW(Matrix{{2}, {1}, {4}}, []float64{1}, []bool{false})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 1, 0.25}, res.Scores, 1e-12)

	// a zero cost is the best value and the rest keep their order
	res, err = s.SAW(Matrix{{0}, {2}, {5}}, []float64{1}, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Normalized[0][0])
	assert.Greater(t, res.Scores[0], res.Scores[1])
	assert.Greater(t, res.Scores[1], res.Scores[2])
	assert.Greater(t, res.Scores[2], 0.0)
}

func TestSAWRejectsNegativeWeights(t *testing.T) {
	s := newTestScorer()
	_, err := s.SAW(Matrix{{1, 2}, {3, 4}}, []float64{-0.5, 1.5}, nil)
	assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
}

func TestEvaluateRejectsNegativeCriterionWeight(t *testing.T) {
	s := newTestScorer()
	criteria := []Criterion{{Name: "Pendapatan", Weight: -1}, {Name: "Jaminan", Weight: 2}}
	for _, method := range []Method{MethodSAW, MethodAHPFull} {
		_, err := s.Evaluate(Request{Method: method, Criteria: criteria, Records: loanApplicants()})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		assert.Contains(t, err.Error(), "Pendapatan")
	}
}

func TestSAWLengthMismatch(t *testing.T) {
	s := newTestScorer()
	m := Matrix{{1, 2}, {3, 4}}

	_, err := s.SAW(m, []float64{1}, nil)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = s.SAW(m, []float64{1, 1}, []bool{true})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = s.SAW(Matrix{{1, 2}, {3}}, []float64{1, 1}, nil)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = s.SAW(Matrix{}, []float64{1}, nil)
	assert.True(t, errors.Is(err, ErrData))
}

// With one criterion AHP priorities are v/sum(v) while SAW gives v/max(v):
// the scores are proportional and the ranking is identical.
func TestSingleCriterionEquivalence(t *testing.T) {
	s := newTestScorer()
	for _, benefit := range []bool{true, false} {
		m := Matrix{{2}, {4}, {6}, {3}}
		saw, err := s.SAW(m, []float64{1}, []bool{benefit})
		require.NoError(t, err)
		ahp, err := s.AHPFull(m, []float64{1}, []bool{benefit})
		require.NoError(t, err)

		ratio := saw.Scores[0] / ahp.Scores[0]
		for i := range m {
			assert.InDelta(t, saw.Scores[i], ahp.Scores[i]*ratio, 1e-9)
		}

		dm := &DecisionMatrix{IDs: []string{"a", "b", "c", "d"}, Names: make([]string, 4), Values: m}
		assert.Equal(t, ids(Rank(dm, saw.Scores, saw.Normalized)), ids(Rank(dm, ahp.Scores, ahp.LocalPriorities)))
	}
}

func TestAlternativePairwise(t *testing.T) {
	s := newTestScorer()

	pair := s.AlternativePairwise([]float64{2, 4}, true)
	assert.Equal(t, Matrix{{1, 0.5}, {2, 1}}, pair)

	pair = s.AlternativePairwise([]float64{2, 4}, false)
	assert.Equal(t, Matrix{{1, 2}, {0.5, 1}}, pair)

	pair = s.AlternativePairwise([]float64{0, 3, 0}, true)
	assert.Equal(t, 1.0, pair[0][2], "0/0 compares as equal")
	assert.Equal(t, 1e9, pair[1][0], "lone zero denominator is the sentinel")
	assert.Equal(t, 0.0, pair[0][1])

	pair = s.AlternativePairwise([]float64{0, 3}, false)
	assert.Equal(t, 1e9, pair[0][1])
	assert.Equal(t, 0.0, pair[1][0])
}

func TestAHPFullZeroValueGivesNegativeCR(t *testing.T) {
	s := newTestScorer()
	res, err := s.AHPFull(Matrix{{0}, {2}, {4}}, []float64{1}, nil)
	require.NoError(t, err)

	require.Len(t, res.Alternatives, 1)
	assert.Less(t, res.Alternatives[0].LambdaMax, 3.0)
	assert.Less(t, res.Alternatives[0].CR, 0.0)
	assert.Less(t, res.MeanAlternativeCR, 0.0)
	assert.Greater(t, res.Scores[2], res.Scores[1])
	assert.Greater(t, res.Scores[1], res.Scores[0])
}

func TestAHPFullReportsAlternativeConsistency(t *testing.T) {
	s := newTestScorer()
	m := Matrix{{2, 4000000, 3, 2}, {1, 6000000, 4, 4}, {3, 2000000, 1, 1}}

	res, err := s.AHPFull(m, []float64{0.1, 0.4, 0.3, 0.2}, []bool{false, true, true, true})
	require.NoError(t, err)

	require.Len(t, res.Alternatives, 4)
	require.Len(t, res.Pairwise, 4)
	for _, cm := range res.Alternatives {
		assert.Less(t, cm.CR, 1e-6, "ratio-built matrices are consistent")
	}
	assert.Less(t, res.MeanAlternativeCR, 1e-6)
	for j := 0; j < 4; j++ {
		var sum float64
		for i := range res.LocalPriorities {
			sum += res.LocalPriorities[i][j]
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	// cost: priorities proportional to 1/age
	assert.InDelta(t, (1.0/2)/(1.0/2+1+1.0/3), res.LocalPriorities[0][0], 1e-9)
}

func TestEvaluateEndToEnd(t *testing.T) {
	s := newTestScorer()

	for _, method := range []Method{MethodSAW, MethodAHPFull} {
		t.Run(string(method), func(t *testing.T) {
			eval, err := s.Evaluate(Request{Method: method, Criteria: loanCriteria(), Records: loanApplicants()})
			require.NoError(t, err)

			require.Len(t, eval.Results, 3)
			assert.Equal(t, []string{"B", "A", "C"}, ids(eval.Results))
			assert.Greater(t, eval.Results[0].Score, eval.Results[1].Score)
			assert.Greater(t, eval.Results[1].Score, eval.Results[2].Score)
			assert.Equal(t, []int{1, 2, 3}, []int{eval.Results[0].Rank, eval.Results[1].Rank, eval.Results[2].Rank})

			assert.Equal(t, []string{FieldAge, FieldIncome, FieldJob, FieldCollateral}, eval.Fields)
			assert.Equal(t, []bool{false, true, true, true}, eval.Benefit)
			assert.False(t, eval.WeightsFromPairwise)
			assert.False(t, eval.ConsistencyWarning)
			assert.Less(t, eval.CriteriaConsistency.CR, 1e-6)
			assert.Empty(t, eval.Ineligible)
			assert.Equal(t, []string{"B"}, eval.ParetoFrontier)
			assert.Equal(t, []string{"B", "A", "C"}, eval.ScoredIDs)
		})
	}
}

func TestEvaluateSAWScores(t *testing.T) {
	eval, err := newTestScorer().Evaluate(Request{Method: MethodSAW, Criteria: loanCriteria(), Records: loanApplicants()})
	require.NoError(t, err)

	byID := map[string]float64{}
	for _, r := range eval.Results {
		byID[r.ID] = r.Score
	}
	assert.InDelta(t, 1.0, byID["B"], 1e-12)
	assert.InDelta(t, 0.05+0.4*(2.0/3)+0.3*0.75+0.2*0.5, byID["A"], 1e-12)
	assert.InDelta(t, 0.1/3+0.4/3+0.3*0.25+0.2*0.25, byID["C"], 1e-12)
}

func TestEvaluateExcludesReservedAgeCode(t *testing.T) {
	records := append(loanApplicants(), applicant("D", 4, 90000000, 4, 4))

	eval, err := newTestScorer().Evaluate(Request{Method: MethodSAW, Criteria: loanCriteria(), Records: records})
	require.NoError(t, err)

	assert.NotContains(t, ids(eval.Results), "D")
	require.Len(t, eval.Ineligible, 1)
	assert.Equal(t, "D", eval.Ineligible[0].ID)
	assert.Contains(t, eval.Ineligible[0].Reason, "category 4")
}

func TestEvaluateNoEligible(t *testing.T) {
	records := []Record{applicant("X", 4, 1000, 1, 1), applicant("Y", 60, 1000, 1, 1)}

	eval, err := newTestScorer().Evaluate(Request{Method: MethodAHPFull, Criteria: loanCriteria(), Records: records})
	require.NoError(t, err)

	assert.True(t, eval.NoEligible)
	assert.Empty(t, eval.Results)
	assert.Len(t, eval.Ineligible, 2)
	assert.Equal(t, "age 60 over 50", eval.Ineligible[1].Reason)
}

func TestEvaluatePairwiseOverridesWeights(t *testing.T) {
	criteria := []Criterion{{Name: "Pendapatan", Weight: 0.1}, {Name: "Jaminan", Weight: 0.9}}
	req := Request{
		Method:   MethodSAW,
		Criteria: criteria,
		Pairwise: Matrix{{1, 3}, {1.0 / 3, 1}},
		Records:  loanApplicants(),
	}

	eval, err := newTestScorer().Evaluate(req)
	require.NoError(t, err)

	assert.True(t, eval.WeightsFromPairwise)
	assert.InDeltaSlice(t, []float64{0.75, 0.25}, eval.Weights, 1e-9)
}

func TestEvaluateInconsistentPairwiseWarns(t *testing.T) {
	criteria := []Criterion{{Name: "Pendapatan"}, {Name: "Pekerjaan"}, {Name: "Jaminan"}}
	req := Request{
		Method:   MethodSAW,
		Criteria: criteria,
		Pairwise: Matrix{{1, 9, 1.0 / 9}, {1.0 / 9, 1, 9}, {9, 1.0 / 9, 1}},
		Records:  loanApplicants(),
	}

	eval, err := newTestScorer().Evaluate(req)
	require.NoError(t, err, "inconsistency is advisory")
	assert.True(t, eval.ConsistencyWarning)
	assert.Len(t, eval.Results, 3)
}

func TestEvaluateExplicitKindOverridesDefault(t *testing.T) {
	criteria := []Criterion{{Name: "Usia", Weight: 1, Kind: KindBenefit}}

	eval, err := newTestScorer().Evaluate(Request{Method: MethodSAW, Criteria: criteria, Records: loanApplicants()})
	require.NoError(t, err)
	assert.Equal(t, "C", eval.Results[0].ID)
}

func TestEvaluateErrors(t *testing.T) {
	s := newTestScorer()

	_, err := s.Evaluate(Request{Method: "topsis", Criteria: loanCriteria(), Records: loanApplicants()})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = s.Evaluate(Request{Method: MethodSAW, Records: loanApplicants()})
	assert.True(t, errors.Is(err, ErrData))

	_, err = s.Evaluate(Request{Method: MethodSAW, Criteria: loanCriteria()})
	assert.True(t, errors.Is(err, ErrData))

	_, err = s.Evaluate(Request{Method: MethodSAW, Criteria: []Criterion{{Name: "Hobi", Weight: 1}}, Records: loanApplicants()})
	assert.True(t, errors.Is(err, ErrMapping))
	var merr *MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "Hobi", merr.Criterion)

	_, err = s.Evaluate(Request{
		Method:   MethodSAW,
		Criteria: loanCriteria(),
		Pairwise: Matrix{{1, 2}, {0.5, 1}},
		Records:  loanApplicants(),
	})
	assert.True(t, errors.Is(err, ErrValidation))

	incomplete := loanApplicants()
	delete(incomplete[1].Attributes, FieldJob)
	_, err = s.Evaluate(Request{Method: MethodSAW, Criteria: loanCriteria(), Records: incomplete})
	assert.True(t, errors.Is(err, ErrData))
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	records := loanApplicants()
	criteria := loanCriteria()

	_, err := newTestScorer().Evaluate(Request{Method: MethodAHPFull, Criteria: criteria, Records: records})
	require.NoError(t, err)

	assert.Equal(t, loanApplicants(), records)
	assert.Equal(t, loanCriteria(), criteria)
}

func TestEvaluateLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewScorer(DefaultOptions(), logger)

	_, err := s.Evaluate(Request{Method: MethodSAW, Criteria: loanCriteria(), Records: loanApplicants()})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "evaluation complete")
}

func TestEvaluationTop(t *testing.T) {
	eval, err := newTestScorer().Evaluate(Request{Method: MethodSAW, Criteria: loanCriteria(), Records: loanApplicants()})
	require.NoError(t, err)

	assert.Len(t, eval.Top(5), 3)
	assert.Equal(t, []string{"B", "A"}, ids(eval.Top(2)))
}

func TestRankStableAndNaNLast(t *testing.T) {
	dm := &DecisionMatrix{
		IDs:    []string{"a", "b", "c", "d"},
		Names:  []string{"", "", "", ""},
		Values: Matrix{{1}, {2}, {3}, {4}},
	}
	results := Rank(dm, []float64{0.5, math.NaN(), 0.9, 0.5}, dm.Values)

	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(results))
	assert.Equal(t, 4, results[3].Rank)
}
