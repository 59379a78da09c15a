package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by updates that match no row.
var ErrNotFound = errors.New("not found")

// Criterion is a configured ranking criterion. Position fixes the order used
// for weight vectors and pairwise matrices.
type Criterion struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	Kind      string    `json:"kind,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Applicant is a loan applicant awaiting evaluation. Attributes holds raw
// values keyed by field (age, income, job, collateral, ...).
type Applicant struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

type ApplicantFilter struct {
	Limit  int
	Offset int
}

// ArchivedApplicant is an applicant moved out of the active set by an
// evaluation run.
type ArchivedApplicant struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
	RunID      uuid.UUID              `json:"run_id"`
	Score      float64                `json:"score"`
	Rank       int                    `json:"rank"`
	ArchivedAt time.Time              `json:"archived_at"`
}

// ArchiveEntry identifies one applicant to archive with its run outcome.
type ArchiveEntry struct {
	ApplicantID uuid.UUID
	Score       float64
	Rank        int
}

// PairwiseMatrix is a named criteria comparison matrix. Criteria records the
// criterion names in matrix order at save time.
type PairwiseMatrix struct {
	Name      string      `json:"name"`
	Criteria  []string    `json:"criteria"`
	Matrix    [][]float64 `json:"matrix"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EvaluationRun is a persisted evaluation. Result holds the serialized
// engine output.
type EvaluationRun struct {
	ID                 uuid.UUID       `json:"id"`
	Method             string          `json:"method"`
	CriteriaCR         float64         `json:"criteria_cr"`
	ConsistencyWarning bool            `json:"consistency_warning"`
	ScoredCount        int             `json:"scored_count"`
	IneligibleCount    int             `json:"ineligible_count"`
	Archived           bool            `json:"archived"`
	Result             json.RawMessage `json:"result"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Store is the persistence collaborator. Getters return nil, nil when the
// row does not exist.
type Store interface {
	CreateCriterion(ctx context.Context, c *Criterion) error
	GetCriterion(ctx context.Context, id uuid.UUID) (*Criterion, error)
	ListCriteria(ctx context.Context) ([]*Criterion, error)
	UpdateCriterion(ctx context.Context, c *Criterion) error
	DeleteCriterion(ctx context.Context, id uuid.UUID) error

	SavePairwise(ctx context.Context, m *PairwiseMatrix) error
	GetPairwise(ctx context.Context, name string) (*PairwiseMatrix, error)
	DeletePairwise(ctx context.Context, name string) error

	CreateApplicant(ctx context.Context, a *Applicant) error
	GetApplicant(ctx context.Context, id uuid.UUID) (*Applicant, error)
	ListApplicants(ctx context.Context, filter ApplicantFilter) ([]*Applicant, error)
	UpdateApplicant(ctx context.Context, a *Applicant) error
	DeleteApplicant(ctx context.Context, id uuid.UUID) error

	// ArchiveApplicants moves applicants into the archive in one transaction
	// and returns how many were moved. Unknown ids are skipped.
	ArchiveApplicants(ctx context.Context, runID uuid.UUID, entries []ArchiveEntry) (int, error)
	ListArchived(ctx context.Context, limit int) ([]*ArchivedApplicant, error)

	CreateEvaluationRun(ctx context.Context, run *EvaluationRun) error
	GetEvaluationRun(ctx context.Context, id uuid.UUID) (*EvaluationRun, error)
	ListEvaluationRuns(ctx context.Context, limit int) ([]*EvaluationRun, error)
	MarkRunArchived(ctx context.Context, id uuid.UUID) error

	Close() error
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func prepareCriterion(c *Criterion, now time.Time) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
}
