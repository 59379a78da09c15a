package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Kredit/internal/config"
	"github.com/MikeSquared-Agency/Kredit/internal/decision"
	"github.com/MikeSquared-Agency/Kredit/internal/hermes"
	"github.com/MikeSquared-Agency/Kredit/internal/store"
)

// Mock implementations

type mockStore struct {
	criteria    []*store.Criterion
	pairwise    map[string]*store.PairwiseMatrix
	applicants  []*store.Applicant
	archived    []*store.ArchivedApplicant
	runs        map[uuid.UUID]*store.EvaluationRun
	failRuns    bool
	failArchive bool
}

func newMockStore() *mockStore {
	return &mockStore{
		pairwise: make(map[string]*store.PairwiseMatrix),
		runs:     make(map[uuid.UUID]*store.EvaluationRun),
	}
}

func (m *mockStore) CreateCriterion(_ context.Context, c *store.Criterion) error {
	c.ID = uuid.New()
	m.criteria = append(m.criteria, c)
	return nil
}
func (m *mockStore) GetCriterion(_ context.Context, id uuid.UUID) (*store.Criterion, error) {
	for _, c := range m.criteria {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}
func (m *mockStore) ListCriteria(_ context.Context) ([]*store.Criterion, error) {
	out := append([]*store.Criterion(nil), m.criteria...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
func (m *mockStore) UpdateCriterion(_ context.Context, _ *store.Criterion) error { return nil }
func (m *mockStore) DeleteCriterion(_ context.Context, _ uuid.UUID) error      { return nil }

func (m *mockStore) SavePairwise(_ context.Context, p *store.PairwiseMatrix) error {
	p.UpdatedAt = time.Now()
	m.pairwise[p.Name] = p
	return nil
}
func (m *mockStore) GetPairwise(_ context.Context, name string) (*store.PairwiseMatrix, error) {
	return m.pairwise[name], nil
}
func (m *mockStore) DeletePairwise(_ context.Context, name string) error {
	delete(m.pairwise, name)
	return nil
}

func (m *mockStore) CreateApplicant(_ context.Context, a *store.Applicant) error {
	a.ID = uuid.New()
	m.applicants = append(m.applicants, a)
	return nil
}
func (m *mockStore) GetApplicant(_ context.Context, id uuid.UUID) (*store.Applicant, error) {
	for _, a := range m.applicants {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}
func (m *mockStore) ListApplicants(_ context.Context, f store.ApplicantFilter) ([]*store.Applicant, error) {
	if f.Offset >= len(m.applicants) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > len(m.applicants) {
		end = len(m.applicants)
	}
	return m.applicants[f.Offset:end], nil
}
func (m *mockStore) UpdateApplicant(_ context.Context, _ *store.Applicant) error { return nil }
func (m *mockStore) DeleteApplicant(_ context.Context, _ uuid.UUID) error      { return nil }

func (m *mockStore) ArchiveApplicants(_ context.Context, runID uuid.UUID, entries []store.ArchiveEntry) (int, error) {
	if m.failArchive {
		return 0, errors.New("archive table locked")
	}
	moved := 0
	for _, e := range entries {
		for i, a := range m.applicants {
			if a.ID != e.ApplicantID {
				continue
			}
			m.archived = append(m.archived, &store.ArchivedApplicant{
				ID: a.ID, Name: a.Name, Attributes: a.Attributes, RunID: runID, Score: e.Score, Rank: e.Rank,
			})
			m.applicants = append(m.applicants[:i], m.applicants[i+1:]...)
			moved++
			break
		}
	}
	return moved, nil
}
func (m *mockStore) ListArchived(_ context.Context, _ int) ([]*store.ArchivedApplicant, error) {
	return m.archived, nil
}

func (m *mockStore) CreateEvaluationRun(_ context.Context, r *store.EvaluationRun) error {
	if m.failRuns {
		return errors.New("disk full")
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.runs[r.ID] = r
	return nil
}
func (m *mockStore) GetEvaluationRun(_ context.Context, id uuid.UUID) (*store.EvaluationRun, error) {
	return m.runs[id], nil
}
func (m *mockStore) ListEvaluationRuns(_ context.Context, _ int) ([]*store.EvaluationRun, error) {
	var out []*store.EvaluationRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}
func (m *mockStore) MarkRunArchived(_ context.Context, id uuid.UUID) error {
	if r, ok := m.runs[id]; ok {
		r.Archived = true
	}
	return nil
}
func (m *mockStore) Close() error { return nil }

type published struct {
	subject string
	data    interface{}
}

type mockHermes struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]func(string, []byte)
}

func newMockHermes() *mockHermes {
	return &mockHermes{handlers: make(map[string]func(string, []byte))}
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{subject, data})
	return nil
}
func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	m.handlers[subject] = handler
	return nil
}
func (m *mockHermes) Close() {}

func (m *mockHermes) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, p := range m.published {
		out[i] = p.subject
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Engine.ConsistencyThreshold = 0.10
	cfg.Evaluation.ArchiveOnRun = false
	return cfg
}

func newTestService(t *testing.T) (*Service, *mockStore, *mockHermes) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	s := newMockStore()
	h := newMockHermes()
	return New(s, h, decision.NewScorer(cfg.EngineOptions(), logger), cfg, logger), s, h
}

func seed(t *testing.T, s *mockStore) map[string]uuid.UUID {
	t.Helper()
	ctx := context.Background()
	for i, c := range []struct {
		name   string
		weight float64
	}{{"Usia", 0.1}, {"Pendapatan", 0.4}, {"Pekerjaan", 0.3}, {"Jaminan", 0.2}} {
		require.NoError(t, s.CreateCriterion(ctx, &store.Criterion{Name: c.name, Weight: c.weight, Position: i}))
	}
	ids := map[string]uuid.UUID{}
	for _, a := range []struct {
		name                           string
		age, income, job, collateral float64
	}{
		{"A", 2, 4000000, 3, 2},
		{"B", 1, 6000000, 4, 4},
		{"C", 3, 2000000, 1, 1},
		{"D", 4, 9000000, 4, 4},
	} {
		app := &store.Applicant{Name: a.name, Attributes: map[string]interface{}{
			"age": a.age, "income": a.income, "job": a.job, "collateral": a.collateral,
		}}
		require.NoError(t, s.CreateApplicant(ctx, app))
		ids[a.name] = app.ID
	}
	return ids
}

func names(results []decision.ScoreResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestRunScoresStoredApplicants(t *testing.T) {
	svc, s, h := newTestService(t)
	seed(t, s)

	res, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, decision.MethodSAW, res.Evaluation.Method)
	assert.Equal(t, []string{"B", "A", "C"}, names(res.Evaluation.Results))
	require.Len(t, res.Evaluation.Ineligible, 1)
	assert.Equal(t, "D", res.Evaluation.Ineligible[0].Name)
	assert.Len(t, res.Top, 3)
	assert.Equal(t, 0, res.Archived)

	require.Contains(t, s.runs, res.Run.ID)
	stored := s.runs[res.Run.ID]
	assert.Equal(t, 3, stored.ScoredCount)
	assert.Equal(t, 1, stored.IneligibleCount)
	assert.False(t, stored.ConsistencyWarning)

	var decoded decision.Evaluation
	require.NoError(t, json.Unmarshal(stored.Result, &decoded))
	assert.Equal(t, []string{"B", "A", "C"}, names(decoded.Results))

	assert.Equal(t, []string{hermes.SubjectEvaluationCompleted(res.Run.ID.String())}, h.subjects())
	assert.Len(t, s.applicants, 4, "applicants stay active without archive")
}

func TestRunUsesSavedPairwise(t *testing.T) {
	svc, s, h := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	inconsistent := decision.Matrix{
		{1, 9, 1.0 / 9, 1},
		{1.0 / 9, 1, 9, 1},
		{9, 1.0 / 9, 1, 1},
		{1, 1, 1, 1},
	}
	_, err := svc.SubmitPairwise(ctx, inconsistent)
	require.NoError(t, err)

	res, err := svc.Run(ctx, RunRequest{Method: decision.MethodAHPFull})
	require.NoError(t, err)

	assert.True(t, res.Evaluation.WeightsFromPairwise)
	assert.True(t, res.Run.ConsistencyWarning)
	assert.Contains(t, h.subjects(), hermes.SubjectEvaluationInconsistent(res.Run.ID.String()))
	assert.Contains(t, h.subjects(), hermes.SubjectPairwiseUpdated)
	assert.Len(t, res.Evaluation.AlternativeConsistency, 4)
}

func TestRunIgnoresStalePairwise(t *testing.T) {
	svc, s, _ := newTestService(t)
	seed(t, s)
	s.pairwise["default"] = &store.PairwiseMatrix{Name: "default", Matrix: [][]float64{{1, 2}, {0.5, 1}}}

	res, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.False(t, res.Evaluation.WeightsFromPairwise)
}

func TestRunWithArchive(t *testing.T) {
	svc, s, h := newTestService(t)
	ids := seed(t, s)

	res, err := svc.Run(context.Background(), RunRequest{Archive: true})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Archived)
	require.Len(t, s.applicants, 1)
	assert.Equal(t, ids["D"], s.applicants[0].ID, "ineligible applicants stay active")
	assert.True(t, s.runs[res.Run.ID].Archived)
	assert.Contains(t, h.subjects(), hermes.SubjectApplicantsArchived)
	assert.Equal(t, "B", s.archived[0].Name)
	assert.Equal(t, 1, s.archived[0].Rank)

	_, err = svc.Archive(context.Background(), res.Run.ID)
	assert.ErrorIs(t, err, ErrAlreadyArchived)
}

func TestRunArchiveFailureKeepsRun(t *testing.T) {
	svc, s, _ := newTestService(t)
	seed(t, s)
	s.failArchive = true
	ctx := context.Background()

	res, err := svc.Run(ctx, RunRequest{Archive: true})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Contains(t, err.Error(), res.Run.ID.String())
	assert.False(t, s.runs[res.Run.ID].Archived)
	assert.Len(t, s.applicants, 4)

	s.failArchive = false
	moved, err := svc.Archive(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, moved)
}

func TestArchiveStoredRun(t *testing.T) {
	svc, s, _ := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	res, err := svc.Run(ctx, RunRequest{})
	require.NoError(t, err)

	moved, err := svc.Archive(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	_, err = svc.Archive(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunErrors(t *testing.T) {
	svc, s, h := newTestService(t)

	_, err := svc.Run(context.Background(), RunRequest{})
	assert.True(t, errors.Is(err, decision.ErrData), "no criteria: %v", err)

	seed(t, s)
	_, err = svc.Run(context.Background(), RunRequest{Method: "electre"})
	assert.True(t, errors.Is(err, decision.ErrValidation))

	s.failRuns = true
	_, err = svc.Run(context.Background(), RunRequest{})
	assert.Error(t, err)
	assert.Empty(t, s.runs)
	assert.Empty(t, h.subjects(), "nothing published on failure")
}

func TestRunNoEligible(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCriterion(ctx, &store.Criterion{Name: "Usia", Weight: 1}))
	require.NoError(t, s.CreateApplicant(ctx, &store.Applicant{Name: "Old", Attributes: map[string]interface{}{"age": 4.0}}))

	res, err := svc.Run(ctx, RunRequest{})
	require.NoError(t, err)
	assert.True(t, res.Evaluation.NoEligible)
	assert.Equal(t, 0, res.Run.ScoredCount)
}

func TestConsistencyFallsBackToWeights(t *testing.T) {
	svc, s, _ := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	rep, err := svc.Consistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "weights", rep.Source)
	assert.Less(t, rep.Metrics.CR, 1e-6)
	assert.True(t, rep.Acceptable)
	assert.Equal(t, []string{"Usia", "Pendapatan", "Pekerjaan", "Jaminan"}, rep.Criteria)
	assert.InDelta(t, 4.0, rep.Matrix[1][0], 1e-12)

	consistent := decision.Matrix{
		{1, 0.25, 1.0 / 3, 0.5},
		{4, 1, 4.0 / 3, 2},
		{3, 0.75, 1, 1.5},
		{2, 0.5, 2.0 / 3, 1},
	}
	_, err = svc.SubmitPairwise(ctx, consistent)
	require.NoError(t, err)

	rep, err = svc.Consistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pairwise", rep.Source)
	assert.InDeltaSlice(t, []float64{0.1, 0.4, 0.3, 0.2}, rep.Metrics.Weights, 1e-9)

	require.NoError(t, svc.DeletePairwise(ctx))
	rep, err = svc.Consistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "weights", rep.Source)
}

func TestConsistencyNoCriteria(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Consistency(context.Background())
	assert.True(t, errors.Is(err, decision.ErrData))
}

func TestSubmitPairwiseSizeMismatch(t *testing.T) {
	svc, s, _ := newTestService(t)
	seed(t, s)

	_, err := svc.SubmitPairwise(context.Background(), decision.Matrix{{1, 2}, {0.5, 1}})
	assert.True(t, errors.Is(err, decision.ErrValidation))
	assert.Empty(t, s.pairwise)
}

func TestAggregatePairwise(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCriterion(ctx, &store.Criterion{Name: "Pendapatan", Position: 0}))
	require.NoError(t, s.CreateCriterion(ctx, &store.Criterion{Name: "Jaminan", Position: 1}))

	judges := []decision.Matrix{
		{{1, 2}, {0.5, 1}},
		{{1, 8}, {0.125, 1}},
	}
	rep, err := svc.AggregatePairwise(ctx, judges, false)
	require.NoError(t, err)
	assert.Equal(t, "aggregate", rep.Source)
	assert.InDelta(t, 4.0, rep.Matrix[0][1], 1e-12)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, rep.Metrics.Weights, 1e-9)
	assert.Empty(t, s.pairwise)

	rep, err = svc.AggregatePairwise(ctx, judges, true)
	require.NoError(t, err)
	assert.Equal(t, "pairwise", rep.Source)
	require.Contains(t, s.pairwise, "default")

	_, err = svc.AggregatePairwise(ctx, nil, false)
	assert.True(t, errors.Is(err, decision.ErrData))
}

func TestEvaluateStateless(t *testing.T) {
	svc, s, h := newTestService(t)

	eval, err := svc.Evaluate(context.Background(), decision.Request{
		Method:   decision.MethodSAW,
		Criteria: []decision.Criterion{{Name: "Pendapatan", Weight: 1}},
		Records: []decision.Record{
			{ID: "x", Attributes: map[string]interface{}{"income": 1.0}},
			{ID: "y", Attributes: map[string]interface{}{"income": 3.0}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "y", eval.Results[0].ID)
	assert.Empty(t, s.runs)
	assert.Empty(t, h.subjects())
}

func TestSetupSubscriptions(t *testing.T) {
	svc, s, h := newTestService(t)
	seed(t, s)
	svc.SetupSubscriptions()

	handler, ok := h.handlers[hermes.SubjectEvaluationRequest]
	require.True(t, ok)

	handler(hermes.SubjectEvaluationRequest, []byte(`{"method":"ahp_full"}`))
	require.Len(t, s.runs, 1)
	for _, r := range s.runs {
		assert.Equal(t, "ahp_full", r.Method)
	}

	handler(hermes.SubjectEvaluationRequest, []byte(`{"request_id":"r1","method":"bogus"}`))
	assert.Contains(t, h.subjects(), hermes.SubjectEvaluationFailed("r1"))

	handler(hermes.SubjectEvaluationRequest, []byte(`not json`))
	assert.Len(t, s.runs, 1)
}

func TestSetupSubscriptionsWithoutHermes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	svc := New(newMockStore(), nil, decision.NewScorer(cfg.EngineOptions(), logger), cfg, logger)
	svc.SetupSubscriptions()
}
