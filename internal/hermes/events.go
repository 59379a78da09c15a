package hermes

import "time"

// EvaluationRequestEvent triggers a stored-data evaluation over NATS.
type EvaluationRequestEvent struct {
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method"`
	Archive   bool   `json:"archive,omitempty"`
}

type EvaluationCompletedEvent struct {
	RunID           string    `json:"run_id"`
	Method          string    `json:"method"`
	ScoredCount     int       `json:"scored_count"`
	IneligibleCount int       `json:"ineligible_count"`
	TopIDs          []string  `json:"top_ids"`
	CriteriaCR      float64   `json:"criteria_cr"`
	Timestamp       time.Time `json:"timestamp"`
}

// EvaluationInconsistentEvent is advisory; the run was still scored.
type EvaluationInconsistentEvent struct {
	RunID      string  `json:"run_id"`
	CriteriaCR float64 `json:"criteria_cr"`
	Threshold  float64 `json:"threshold"`
}

type EvaluationFailedEvent struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

type ApplicantsArchivedEvent struct {
	RunID string `json:"run_id"`
	Count int    `json:"count"`
}

type PairwiseUpdatedEvent struct {
	Name      string    `json:"name"`
	Criteria  []string  `json:"criteria"`
	LambdaMax float64   `json:"lambda_max"`
	CR        float64   `json:"cr"`
	Weights   []float64 `json:"weights"`
}
