package decision

import (
	"io"
	"log/slog"
)

// Method selects the scoring algorithm.
type Method string

const (
	MethodSAW     Method = "saw"
	MethodAHPFull Method = "ahp_full"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == MethodSAW || m == MethodAHPFull
}

// Options tunes the numeric guards and business rules of a Scorer.
type Options struct {
	CostEpsilon          float64
	DominanceSentinel    float64
	ConsistencyThreshold float64
	Eligibility          EligibilityRule
	Fields               FieldTable
	Categorical          map[string]map[string]float64
}

// DefaultOptions returns the standard guards: epsilon 1e-9, sentinel 1e9,
// CR threshold 0.10, age rule and keyword table.
func DefaultOptions() Options {
	return Options{
		CostEpsilon:          1e-9,
		DominanceSentinel:    1e9,
		ConsistencyThreshold: 0.10,
		Eligibility:          DefaultEligibilityRule(),
		Fields:               DefaultFieldTable(),
		Categorical:          DefaultCategoricalMappings(),
	}
}

// Criterion is one configured criterion. An empty Kind takes the default
// direction of the field it resolves to.
type Criterion struct {
	Name   string  `json:"name" yaml:"name" validate:"required"`
	Weight float64 `json:"weight" yaml:"weight" validate:"gte=0"`
	Kind   Kind    `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=benefit cost"`
}

// Request is a complete, materialized evaluation input. Pairwise, when set,
// is the criteria comparison matrix and supersedes the criterion weights.
type Request struct {
	Method   Method      `json:"method" yaml:"method"`
	Criteria []Criterion `json:"criteria" yaml:"criteria"`
	Pairwise Matrix      `json:"pairwise,omitempty" yaml:"pairwise,omitempty"`
	Records  []Record    `json:"applicants" yaml:"applicants"`
}

// Evaluation is the ranked outcome of one Evaluate call.
type Evaluation struct {
	Method   Method    `json:"method"`
	Criteria []string  `json:"criteria"`
	Fields   []string  `json:"fields"`
	Weights  []float64 `json:"weights"`
	Benefit  []bool    `json:"benefit"`

	Results    []ScoreResult `json:"results"`
	Ineligible []Ineligible  `json:"ineligible"`
	// NoEligible flags that filtering removed every applicant.
	NoEligible bool `json:"no_eligible"`

	CriteriaConsistency    ConsistencyMetrics   `json:"criteria_consistency"`
	WeightsFromPairwise    bool                 `json:"weights_from_pairwise"`
	AlternativeConsistency []ConsistencyMetrics `json:"alternative_consistency,omitempty"`
	MeanAlternativeCR      float64              `json:"mean_alternative_cr"`
	// ConsistencyWarning is advisory: criteria CR above the threshold.
	ConsistencyWarning bool `json:"consistency_warning"`

	ParetoFrontier []string `json:"pareto_frontier"`
	ScoredIDs      []string `json:"scored_ids"`
}

// Top returns up to n leading results.
func (e *Evaluation) Top(n int) []ScoreResult {
	if n > len(e.Results) {
		n = len(e.Results)
	}
	return e.Results[:n]
}

// Scorer runs the ranking pipeline. It holds no per-call state and is safe
// for concurrent use.
type Scorer struct {
	opts   Options
	logger *slog.Logger
}

// NewScorer creates a Scorer. A nil logger discards output.
func NewScorer(opts Options, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Fields == nil {
		opts.Fields = DefaultFieldTable()
	}
	return &Scorer{opts: opts, logger: logger}
}

// Options returns the scorer configuration.
func (s *Scorer) Options() Options {
	return s.opts
}

// CriteriaWeights resolves the weight vector and criteria-level consistency:
// from the pairwise matrix when given, otherwise from the normalized
// criterion weights via reconstruction.
func (s *Scorer) CriteriaWeights(criteria []Criterion, pairwise Matrix) ([]float64, *ConsistencyMetrics, error) {
	if len(criteria) == 0 {
		return nil, nil, dataErrorf("criteria weights", "criteria set is empty")
	}
	if pairwise != nil {
		if len(pairwise) != len(criteria) {
			return nil, nil, validationErrorf("criteria weights", "pairwise matrix is %dx%d for %d criteria", len(pairwise), len(pairwise), len(criteria))
		}
		cm, err := Analyze(pairwise)
		if err != nil {
			return nil, nil, err
		}
		return append([]float64(nil), cm.Weights...), cm, nil
	}

	ws := WeightSet{Names: make([]string, len(criteria)), Weights: make([]float64, len(criteria))}
	for i, c := range criteria {
		ws.Names[i], ws.Weights[i] = c.Name, c.Weight
	}
	norm, err := ws.Normalized()
	if err != nil {
		return nil, nil, err
	}
	cm, _, err := FromWeights(norm.Weights)
	if err != nil {
		return nil, nil, err
	}
	return norm.Weights, cm, nil
}

// Evaluate runs validate → resolve fields → filter → build matrix → score →
// rank. Each call is independent; inputs are not modified.
func (s *Scorer) Evaluate(req Request) (*Evaluation, error) {
	if !req.Method.Valid() {
		return nil, validationErrorf("evaluate", "unknown method %q", req.Method)
	}
	if len(req.Criteria) == 0 {
		return nil, dataErrorf("evaluate", "criteria set is empty")
	}
	if len(req.Records) == 0 {
		return nil, dataErrorf("evaluate", "alternative set is empty")
	}

	known := attributeKeys(req.Records)
	names := make([]string, len(req.Criteria))
	fields := make([]string, len(req.Criteria))
	benefit := make([]bool, len(req.Criteria))
	for i, c := range req.Criteria {
		rule, err := s.opts.Fields.Resolve(c.Name, known)
		if err != nil {
			return nil, err
		}
		kind := c.Kind
		if kind == "" {
			kind = rule.Kind
		}
		names[i] = c.Name
		fields[i] = rule.Field
		benefit[i] = kind != KindCost
	}

	weights, crit, err := s.CriteriaWeights(req.Criteria, req.Pairwise)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Method:              req.Method,
		Criteria:            names,
		Fields:              fields,
		Weights:             weights,
		Benefit:             benefit,
		Results:             []ScoreResult{},
		CriteriaConsistency: *crit,
		WeightsFromPairwise: req.Pairwise != nil,
		ConsistencyWarning:  !crit.Acceptable(s.opts.ConsistencyThreshold),
		ParetoFrontier:      []string{},
		ScoredIDs:           []string{},
	}

	eligible, ineligible := s.opts.Eligibility.Filter(req.Records)
	eval.Ineligible = ineligible
	if len(eligible) == 0 {
		eval.NoEligible = true
		s.logger.Info("no eligible applicants", "filtered", len(ineligible))
		return eval, nil
	}

	dm, err := BuildDecisionMatrix(eligible, fields, ValueMapper{Categorical: s.opts.Categorical})
	if err != nil {
		return nil, err
	}

	var scores []float64
	var values Matrix
	switch req.Method {
	case MethodSAW:
		res, err := s.SAW(dm.Values, weights, benefit)
		if err != nil {
			return nil, err
		}
		scores, values = res.Scores, res.Normalized
	case MethodAHPFull:
		res, err := s.AHPFull(dm.Values, weights, benefit)
		if err != nil {
			return nil, err
		}
		scores, values = res.Scores, res.LocalPriorities
		eval.AlternativeConsistency = res.Alternatives
		eval.MeanAlternativeCR = res.MeanAlternativeCR
	}

	eval.Results = Rank(dm, scores, values)
	for _, idx := range ParetoFrontier(dm.Values, benefit) {
		eval.ParetoFrontier = append(eval.ParetoFrontier, dm.IDs[idx])
	}
	for _, r := range eval.Results {
		eval.ScoredIDs = append(eval.ScoredIDs, r.ID)
	}

	s.logger.Debug("evaluation complete",
		"method", req.Method,
		"scored", len(eval.Results),
		"ineligible", len(ineligible),
		"criteria_cr", crit.CR,
	)
	return eval, nil
}
