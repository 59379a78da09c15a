package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kredit_criteria (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	weight     DOUBLE PRECISION NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS kredit_pairwise_matrices (
	name       TEXT PRIMARY KEY,
	criteria   JSONB NOT NULL DEFAULT '[]',
	matrix     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS kredit_applicants (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	attributes JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS kredit_archived_applicants (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	attributes  JSONB NOT NULL DEFAULT '{}',
	run_id      UUID NOT NULL,
	score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	final_rank  INTEGER NOT NULL DEFAULT 0,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_kredit_archived_run ON kredit_archived_applicants(run_id);

CREATE TABLE IF NOT EXISTS kredit_evaluation_runs (
	id                  UUID PRIMARY KEY,
	method              TEXT NOT NULL,
	criteria_cr         DOUBLE PRECISION NOT NULL DEFAULT 0,
	consistency_warning BOOLEAN NOT NULL DEFAULT false,
	scored_count        INTEGER NOT NULL DEFAULT 0,
	ineligible_count    INTEGER NOT NULL DEFAULT 0,
	archived            BOOLEAN NOT NULL DEFAULT false,
	result              JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Criteria ---

func (s *PostgresStore) CreateCriterion(ctx context.Context, c *Criterion) error {
	prepareCriterion(c, time.Now().UTC())
	return s.pool.QueryRow(ctx, `
		INSERT INTO kredit_criteria (id, name, weight, kind, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Weight, c.Kind, c.Position,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *PostgresStore) GetCriterion(ctx context.Context, id uuid.UUID) (*Criterion, error) {
	c := &Criterion{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, weight, kind, position, created_at, updated_at
		FROM kredit_criteria WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Weight, &c.Kind, &c.Position, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListCriteria(ctx context.Context) ([]*Criterion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, weight, kind, position, created_at, updated_at
		FROM kredit_criteria ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Criterion
	for rows.Next() {
		c := &Criterion{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Weight, &c.Kind, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateCriterion(ctx context.Context, c *Criterion) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE kredit_criteria SET name = $2, weight = $3, kind = $4, position = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Weight, c.Kind, c.Position,
	).Scan(&c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) DeleteCriterion(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kredit_criteria WHERE id = $1`, id)
	return err
}

// --- Pairwise matrices ---

func (s *PostgresStore) SavePairwise(ctx context.Context, m *PairwiseMatrix) error {
	criteriaJSON, _ := json.Marshal(m.Criteria)
	matrixJSON, err := json.Marshal(m.Matrix)
	if err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO kredit_pairwise_matrices (name, criteria, matrix)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET criteria = EXCLUDED.criteria, matrix = EXCLUDED.matrix, updated_at = now()
		RETURNING updated_at`,
		m.Name, criteriaJSON, matrixJSON,
	).Scan(&m.UpdatedAt)
}

func (s *PostgresStore) GetPairwise(ctx context.Context, name string) (*PairwiseMatrix, error) {
	m := &PairwiseMatrix{Name: name}
	var criteriaJSON, matrixJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT criteria, matrix, updated_at
		FROM kredit_pairwise_matrices WHERE name = $1`, name,
	).Scan(&criteriaJSON, &matrixJSON, &m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodePairwise(m, criteriaJSON, matrixJSON); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) DeletePairwise(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kredit_pairwise_matrices WHERE name = $1`, name)
	return err
}

// --- Applicants ---

func (s *PostgresStore) CreateApplicant(ctx context.Context, a *Applicant) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	attrJSON, _ := json.Marshal(a.Attributes)
	return s.pool.QueryRow(ctx, `
		INSERT INTO kredit_applicants (id, name, attributes)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		a.ID, a.Name, attrJSON,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *PostgresStore) GetApplicant(ctx context.Context, id uuid.UUID) (*Applicant, error) {
	a := &Applicant{}
	var attrJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, attributes, created_at, updated_at
		FROM kredit_applicants WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &attrJSON, &a.CreatedAt, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	decodeAttributes(attrJSON, &a.Attributes)
	return a, nil
}

func (s *PostgresStore) ListApplicants(ctx context.Context, filter ApplicantFilter) ([]*Applicant, error) {
	query := `SELECT id, name, attributes, created_at, updated_at
		FROM kredit_applicants ORDER BY created_at ASC, id ASC LIMIT $1`
	args := []interface{}{listLimit(filter.Limit)}
	if filter.Offset > 0 {
		query += " OFFSET $2"
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Applicant
	for rows.Next() {
		a := &Applicant{}
		var attrJSON []byte
		if err := rows.Scan(&a.ID, &a.Name, &attrJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		decodeAttributes(attrJSON, &a.Attributes)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateApplicant(ctx context.Context, a *Applicant) error {
	attrJSON, _ := json.Marshal(a.Attributes)
	err := s.pool.QueryRow(ctx, `
		UPDATE kredit_applicants SET name = $2, attributes = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Name, attrJSON,
	).Scan(&a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) DeleteApplicant(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kredit_applicants WHERE id = $1`, id)
	return err
}

// --- Archive ---

func (s *PostgresStore) ArchiveApplicants(ctx context.Context, runID uuid.UUID, entries []ArchiveEntry) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	moved := 0
	for _, e := range entries {
		tag, err := tx.Exec(ctx, `
			INSERT INTO kredit_archived_applicants (id, name, attributes, run_id, score, final_rank)
			SELECT id, name, attributes, $2, $3, $4 FROM kredit_applicants WHERE id = $1`,
			e.ApplicantID, runID, e.Score, e.Rank)
		if err != nil {
			return 0, fmt.Errorf("archive applicant %s: %w", e.ApplicantID, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM kredit_applicants WHERE id = $1`, e.ApplicantID); err != nil {
			return 0, fmt.Errorf("remove applicant %s: %w", e.ApplicantID, err)
		}
		moved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit archive: %w", err)
	}
	return moved, nil
}

func (s *PostgresStore) ListArchived(ctx context.Context, limit int) ([]*ArchivedApplicant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, attributes, run_id, score, final_rank, archived_at
		FROM kredit_archived_applicants
		ORDER BY archived_at DESC, final_rank ASC
		LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ArchivedApplicant
	for rows.Next() {
		a := &ArchivedApplicant{}
		var attrJSON []byte
		if err := rows.Scan(&a.ID, &a.Name, &attrJSON, &a.RunID, &a.Score, &a.Rank, &a.ArchivedAt); err != nil {
			return nil, err
		}
		decodeAttributes(attrJSON, &a.Attributes)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Evaluation runs ---

const runColumns = `id, method, criteria_cr, consistency_warning, scored_count, ineligible_count, archived, result, created_at`

func (s *PostgresStore) CreateEvaluationRun(ctx context.Context, run *EvaluationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	result := []byte(run.Result)
	if len(result) == 0 {
		result = []byte("{}")
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO kredit_evaluation_runs (id, method, criteria_cr, consistency_warning, scored_count, ineligible_count, archived, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		run.ID, run.Method, run.CriteriaCR, run.ConsistencyWarning, run.ScoredCount, run.IneligibleCount, run.Archived, result,
	).Scan(&run.CreatedAt)
}

func (s *PostgresStore) GetEvaluationRun(ctx context.Context, id uuid.UUID) (*EvaluationRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM kredit_evaluation_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *PostgresStore) ListEvaluationRuns(ctx context.Context, limit int) ([]*EvaluationRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+` FROM kredit_evaluation_runs
		ORDER BY created_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EvaluationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkRunArchived(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE kredit_evaluation_runs SET archived = true WHERE id = $1`, id)
	return err
}

func scanRun(row pgx.Row) (*EvaluationRun, error) {
	run := &EvaluationRun{}
	var result []byte
	if err := row.Scan(
		&run.ID, &run.Method, &run.CriteriaCR, &run.ConsistencyWarning,
		&run.ScoredCount, &run.IneligibleCount, &run.Archived, &result, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Result = json.RawMessage(result)
	return run, nil
}

func decodeAttributes(data []byte, out *map[string]interface{}) {
	if data != nil {
		_ = json.Unmarshal(data, out)
	}
	if *out == nil {
		*out = map[string]interface{}{}
	}
}

func decodePairwise(m *PairwiseMatrix, criteriaJSON, matrixJSON []byte) error {
	if criteriaJSON != nil {
		_ = json.Unmarshal(criteriaJSON, &m.Criteria)
	}
	if err := json.Unmarshal(matrixJSON, &m.Matrix); err != nil {
		return fmt.Errorf("decode matrix %q: %w", m.Name, err)
	}
	return nil
}
