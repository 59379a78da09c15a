package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS criteria (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	weight     REAL NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pairwise_matrices (
	name       TEXT PRIMARY KEY,
	criteria   TEXT NOT NULL DEFAULT '[]',
	matrix     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS nasabah (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	attributes TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_nasabah (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	attributes  TEXT NOT NULL DEFAULT '{}',
	run_id      TEXT NOT NULL,
	score       REAL NOT NULL DEFAULT 0,
	final_rank  INTEGER NOT NULL DEFAULT 0,
	archived_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_run ON processed_nasabah(run_id);

CREATE TABLE IF NOT EXISTS evaluation_runs (
	id                  TEXT PRIMARY KEY,
	method              TEXT NOT NULL,
	criteria_cr         REAL NOT NULL DEFAULT 0,
	consistency_warning INTEGER NOT NULL DEFAULT 0,
	scored_count        INTEGER NOT NULL DEFAULT 0,
	ineligible_count    INTEGER NOT NULL DEFAULT 0,
	archived            INTEGER NOT NULL DEFAULT 0,
	result              TEXT NOT NULL DEFAULT '{}',
	created_at          INTEGER NOT NULL
);
`

// SQLiteStore is the single-file backend. It uses one connection; WAL mode
// still lets readers proceed during a write.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unixNano(t time.Time) int64 { return t.UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }

// --- Criteria ---

func (s *SQLiteStore) CreateCriterion(ctx context.Context, c *Criterion) error {
	prepareCriterion(c, time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO criteria (id, name, weight, kind, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, c.Weight, c.Kind, c.Position, unixNano(c.CreatedAt), unixNano(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create criterion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCriterion(ctx context.Context, id uuid.UUID) (*Criterion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, weight, kind, position, created_at, updated_at
		FROM criteria WHERE id = ?`, id.String())
	c, err := scanSQLiteCriterion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStore) ListCriteria(ctx context.Context) ([]*Criterion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, weight, kind, position, created_at, updated_at
		FROM criteria ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Criterion
	for rows.Next() {
		c, err := scanSQLiteCriterion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateCriterion(ctx context.Context, c *Criterion) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE criteria SET name = ?, weight = ?, kind = ?, position = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Weight, c.Kind, c.Position, unixNano(c.UpdatedAt), c.ID.String())
	if err != nil {
		return fmt.Errorf("update criterion: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteCriterion(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM criteria WHERE id = ?`, id.String())
	return err
}

// --- Pairwise matrices ---

func (s *SQLiteStore) SavePairwise(ctx context.Context, m *PairwiseMatrix) error {
	criteriaJSON, _ := json.Marshal(m.Criteria)
	matrixJSON, err := json.Marshal(m.Matrix)
	if err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	m.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pairwise_matrices (name, criteria, matrix, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET criteria = excluded.criteria, matrix = excluded.matrix, updated_at = excluded.updated_at`,
		m.Name, string(criteriaJSON), string(matrixJSON), unixNano(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save pairwise: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPairwise(ctx context.Context, name string) (*PairwiseMatrix, error) {
	m := &PairwiseMatrix{Name: name}
	var criteriaJSON, matrixJSON string
	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT criteria, matrix, updated_at FROM pairwise_matrices WHERE name = ?`, name,
	).Scan(&criteriaJSON, &matrixJSON, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.UpdatedAt = fromUnixNano(updated)
	if err := decodePairwise(m, []byte(criteriaJSON), []byte(matrixJSON)); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) DeletePairwise(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pairwise_matrices WHERE name = ?`, name)
	return err
}

// --- Applicants ---

func (s *SQLiteStore) CreateApplicant(ctx context.Context, a *Applicant) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	attrJSON, _ := json.Marshal(a.Attributes)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nasabah (id, name, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID.String(), a.Name, string(attrJSON), unixNano(now), unixNano(now))
	if err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetApplicant(ctx context.Context, id uuid.UUID) (*Applicant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, attributes, created_at, updated_at
		FROM nasabah WHERE id = ?`, id.String())
	a, err := scanSQLiteApplicant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *SQLiteStore) ListApplicants(ctx context.Context, filter ApplicantFilter) ([]*Applicant, error) {
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, attributes, created_at, updated_at
		FROM nasabah ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		listLimit(filter.Limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Applicant
	for rows.Next() {
		a, err := scanSQLiteApplicant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateApplicant(ctx context.Context, a *Applicant) error {
	a.UpdatedAt = time.Now().UTC()
	attrJSON, _ := json.Marshal(a.Attributes)
	res, err := s.db.ExecContext(ctx, `
		UPDATE nasabah SET name = ?, attributes = ?, updated_at = ? WHERE id = ?`,
		a.Name, string(attrJSON), unixNano(a.UpdatedAt), a.ID.String())
	if err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteApplicant(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nasabah WHERE id = ?`, id.String())
	return err
}

// --- Archive ---

func (s *SQLiteStore) ArchiveApplicants(ctx context.Context, runID uuid.UUID, entries []ArchiveEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := unixNano(time.Now().UTC())
	moved := 0
	for _, e := range entries {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO processed_nasabah (id, name, attributes, run_id, score, final_rank, archived_at)
			SELECT id, name, attributes, ?, ?, ?, ? FROM nasabah WHERE id = ?`,
			runID.String(), e.Score, e.Rank, now, e.ApplicantID.String())
		if err != nil {
			return 0, fmt.Errorf("archive applicant %s: %w", e.ApplicantID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nasabah WHERE id = ?`, e.ApplicantID.String()); err != nil {
			return 0, fmt.Errorf("remove applicant %s: %w", e.ApplicantID, err)
		}
		moved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive: %w", err)
	}
	return moved, nil
}

func (s *SQLiteStore) ListArchived(ctx context.Context, limit int) ([]*ArchivedApplicant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, attributes, run_id, score, final_rank, archived_at
		FROM processed_nasabah ORDER BY archived_at DESC, final_rank ASC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ArchivedApplicant
	for rows.Next() {
		a := &ArchivedApplicant{}
		var id, runID, attrJSON string
		var archived int64
		if err := rows.Scan(&id, &a.Name, &attrJSON, &runID, &a.Score, &a.Rank, &archived); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse id: %w", err)
		}
		if a.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		decodeAttributes([]byte(attrJSON), &a.Attributes)
		a.ArchivedAt = fromUnixNano(archived)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Evaluation runs ---

func (s *SQLiteStore) CreateEvaluationRun(ctx context.Context, run *EvaluationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now().UTC()
	result := string(run.Result)
	if result == "" {
		result = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_runs (id, method, criteria_cr, consistency_warning, scored_count, ineligible_count, archived, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Method, run.CriteriaCR, run.ConsistencyWarning,
		run.ScoredCount, run.IneligibleCount, run.Archived, result, unixNano(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("create evaluation run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEvaluationRun(ctx context.Context, id uuid.UUID) (*EvaluationRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM evaluation_runs WHERE id = ?`, id.String())
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListEvaluationRuns(ctx context.Context, limit int) ([]*EvaluationRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM evaluation_runs ORDER BY created_at DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EvaluationRun
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkRunArchived(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE evaluation_runs SET archived = 1 WHERE id = ?`, id.String())
	return err
}

type sqliteScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteCriterion(row sqliteScanner) (*Criterion, error) {
	c := &Criterion{}
	var id string
	var created, updated int64
	if err := row.Scan(&id, &c.Name, &c.Weight, &c.Kind, &c.Position, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = fromUnixNano(created), fromUnixNano(updated)
	return c, nil
}

func scanSQLiteApplicant(row sqliteScanner) (*Applicant, error) {
	a := &Applicant{}
	var id, attrJSON string
	var created, updated int64
	if err := row.Scan(&id, &a.Name, &attrJSON, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	decodeAttributes([]byte(attrJSON), &a.Attributes)
	a.CreatedAt, a.UpdatedAt = fromUnixNano(created), fromUnixNano(updated)
	return a, nil
}

func scanSQLiteRun(row sqliteScanner) (*EvaluationRun, error) {
	run := &EvaluationRun{}
	var id, result string
	var created int64
	if err := row.Scan(
		&id, &run.Method, &run.CriteriaCR, &run.ConsistencyWarning,
		&run.ScoredCount, &run.IneligibleCount, &run.Archived, &result, &created,
	); err != nil {
		return nil, err
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	run.Result = json.RawMessage(result)
	run.CreatedAt = fromUnixNano(created)
	return run, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
