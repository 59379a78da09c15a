// Package evaluation orchestrates credit evaluations over stored criteria
// and applicants: snapshot, score, persist, publish.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MikeSquared-Agency/Kredit/internal/config"
	"github.com/MikeSquared-Agency/Kredit/internal/decision"
	"github.com/MikeSquared-Agency/Kredit/internal/hermes"
	"github.com/MikeSquared-Agency/Kredit/internal/store"
)

var (
	ErrRunNotFound     = errors.New("evaluation run not found")
	ErrAlreadyArchived = errors.New("evaluation run already archived")
)

const snapshotPageSize = 500

// RunRequest starts an evaluation over the stored data.
type RunRequest struct {
	Method  decision.Method `json:"method" validate:"omitempty,oneof=saw ahp_full"`
	Archive bool            `json:"archive"`
}

// RunResult is a persisted evaluation with its engine output.
type RunResult struct {
	Run        *store.EvaluationRun   `json:"run"`
	Evaluation *decision.Evaluation   `json:"evaluation"`
	Top        []decision.ScoreResult `json:"top"`
	Archived   int                    `json:"archived"`
}

// ConsistencyReport describes the criteria comparison matrix in effect.
// Source is "pairwise" for a saved matrix, "weights" for one reconstructed
// from the stored weights and "aggregate" for an unsaved aggregation.
type ConsistencyReport struct {
	Source     string                      `json:"source"`
	Criteria   []string                    `json:"criteria"`
	Matrix     decision.Matrix             `json:"matrix"`
	Metrics    decision.ConsistencyMetrics `json:"metrics"`
	Threshold  float64                     `json:"threshold"`
	Acceptable bool                        `json:"acceptable"`
}

type Service struct {
	store  store.Store
	hermes hermes.Client
	scorer *decision.Scorer
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Service. h may be nil, in which case no events are published.
func New(s store.Store, h hermes.Client, scorer *decision.Scorer, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:  s,
		hermes: h,
		scorer: scorer,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("kredit/evaluation"),
	}
}

// Scorer returns the engine used by the service.
func (s *Service) Scorer() *decision.Scorer {
	return s.scorer
}

// Evaluate scores an explicit request without touching the store.
func (s *Service) Evaluate(ctx context.Context, req decision.Request) (*decision.Evaluation, error) {
	_, span := s.tracer.Start(ctx, "evaluation.Evaluate",
		trace.WithAttributes(
			attribute.String("method", string(req.Method)),
			attribute.Int("applicants", len(req.Records)),
			attribute.Int("criteria", len(req.Criteria)),
		),
	)
	defer span.End()

	eval, err := s.score(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return eval, nil
}

func (s *Service) score(req decision.Request) (*decision.Evaluation, error) {
	method := string(req.Method)
	start := time.Now()
	eval, err := s.scorer.Evaluate(req)
	evaluationDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		evaluationsTotal.WithLabelValues(method, "error").Inc()
		return nil, err
	}
	status := "ok"
	if eval.NoEligible {
		status = "no_eligible"
	}
	evaluationsTotal.WithLabelValues(method, status).Inc()
	applicantsScored.Add(float64(len(eval.Results)))
	applicantsIneligible.Add(float64(len(eval.Ineligible)))
	criteriaConsistencyRatio.Set(eval.CriteriaConsistency.CR)
	return eval, nil
}

// Run snapshots the stored criteria, pairwise matrix and applicants, scores
// them, persists the run and publishes the outcome. Nothing is persisted when
// scoring fails. If archiving fails after the run was saved, the result is
// returned alongside the error.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Method == "" {
		req.Method = decision.MethodSAW
	}
	ctx, span := s.tracer.Start(ctx, "evaluation.Run",
		trace.WithAttributes(attribute.String("method", string(req.Method))),
	)
	defer span.End()

	dreq, err := s.snapshot(ctx, req.Method)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	eval, err := s.score(*dreq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	payload, err := json.Marshal(eval)
	if err != nil {
		return nil, fmt.Errorf("encode evaluation: %w", err)
	}
	run := &store.EvaluationRun{
		Method:             string(eval.Method),
		CriteriaCR:         eval.CriteriaConsistency.CR,
		ConsistencyWarning: eval.ConsistencyWarning,
		ScoredCount:        len(eval.Results),
		IneligibleCount:    len(eval.Ineligible),
		Result:             payload,
	}
	if err := s.store.CreateEvaluationRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save evaluation run: %w", err)
	}

	span.SetAttributes(
		attribute.String("run_id", run.ID.String()),
		attribute.Int("scored", run.ScoredCount),
		attribute.Int("ineligible", run.IneligibleCount),
		attribute.Float64("criteria_cr", run.CriteriaCR),
	)
	s.logger.Info("evaluation completed",
		"run_id", run.ID,
		"method", run.Method,
		"scored", run.ScoredCount,
		"ineligible", run.IneligibleCount,
		"criteria_cr", run.CriteriaCR,
	)

	top := eval.Top(s.cfg.Report.TopN)
	s.publishCompleted(run, top)

	result := &RunResult{Run: run, Evaluation: eval, Top: top}
	if req.Archive || s.cfg.Evaluation.ArchiveOnRun {
		moved, err := s.archive(ctx, run, eval)
		if err != nil {
			// the run is already saved; hand it back so the archive can be retried
			s.logger.Warn("run saved but archive failed", "run_id", run.ID, "error", err)
			span.RecordError(err)
			return result, fmt.Errorf("run %s saved, archive failed: %w", run.ID, err)
		}
		result.Archived = moved
	}
	return result, nil
}

func (s *Service) publishCompleted(run *store.EvaluationRun, top []decision.ScoreResult) {
	if s.hermes == nil {
		return
	}
	topIDs := make([]string, len(top))
	for i, r := range top {
		topIDs[i] = r.ID
	}
	_ = s.hermes.Publish(hermes.SubjectEvaluationCompleted(run.ID.String()), hermes.EvaluationCompletedEvent{
		RunID:           run.ID.String(),
		Method:          run.Method,
		ScoredCount:     run.ScoredCount,
		IneligibleCount: run.IneligibleCount,
		TopIDs:          topIDs,
		CriteriaCR:      run.CriteriaCR,
		Timestamp:       run.CreatedAt,
	})
	if run.ConsistencyWarning {
		_ = s.hermes.Publish(hermes.SubjectEvaluationInconsistent(run.ID.String()), hermes.EvaluationInconsistentEvent{
			RunID:      run.ID.String(),
			CriteriaCR: run.CriteriaCR,
			Threshold:  s.cfg.Engine.ConsistencyThreshold,
		})
	}
}

// snapshot copies the stored state into an engine request. A saved pairwise
// matrix whose size no longer matches the criteria is ignored.
func (s *Service) snapshot(ctx context.Context, method decision.Method) (*decision.Request, error) {
	criteria, err := s.store.ListCriteria(ctx)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	req := &decision.Request{Method: method, Criteria: make([]decision.Criterion, len(criteria))}
	for i, c := range criteria {
		req.Criteria[i] = decision.Criterion{Name: c.Name, Weight: c.Weight, Kind: decision.Kind(c.Kind)}
	}

	pw, err := s.store.GetPairwise(ctx, s.cfg.Evaluation.PairwiseName)
	if err != nil {
		return nil, fmt.Errorf("get pairwise matrix: %w", err)
	}
	if pw != nil {
		if len(pw.Matrix) == len(criteria) {
			req.Pairwise = decision.Matrix(pw.Matrix).Clone()
		} else {
			s.logger.Warn("ignoring stale pairwise matrix",
				"name", pw.Name, "size", len(pw.Matrix), "criteria", len(criteria))
		}
	}

	for offset := 0; ; offset += snapshotPageSize {
		page, err := s.store.ListApplicants(ctx, store.ApplicantFilter{Limit: snapshotPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("list applicants: %w", err)
		}
		for _, a := range page {
			req.Records = append(req.Records, toRecord(a))
		}
		if len(page) < snapshotPageSize {
			break
		}
	}
	return req, nil
}

func toRecord(a *store.Applicant) decision.Record {
	attrs := make(map[string]interface{}, len(a.Attributes))
	for k, v := range a.Attributes {
		attrs[k] = v
	}
	return decision.Record{ID: a.ID.String(), Name: a.Name, Attributes: attrs}
}

// Result loads a stored run and decodes its evaluation.
func (s *Service) Result(ctx context.Context, runID uuid.UUID) (*store.EvaluationRun, *decision.Evaluation, error) {
	run, err := s.store.GetEvaluationRun(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("get evaluation run: %w", err)
	}
	if run == nil {
		return nil, nil, ErrRunNotFound
	}
	eval := &decision.Evaluation{}
	if err := json.Unmarshal(run.Result, eval); err != nil {
		return nil, nil, fmt.Errorf("decode evaluation %s: %w", runID, err)
	}
	return run, eval, nil
}

// Archive moves the applicants scored by a stored run into the archive.
func (s *Service) Archive(ctx context.Context, runID uuid.UUID) (int, error) {
	run, eval, err := s.Result(ctx, runID)
	if err != nil {
		return 0, err
	}
	if run.Archived {
		return 0, ErrAlreadyArchived
	}
	return s.archive(ctx, run, eval)
}

func (s *Service) archive(ctx context.Context, run *store.EvaluationRun, eval *decision.Evaluation) (int, error) {
	entries := make([]store.ArchiveEntry, 0, len(eval.Results))
	for _, r := range eval.Results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			s.logger.Warn("skipping archive of non-uuid applicant", "id", r.ID)
			continue
		}
		entries = append(entries, store.ArchiveEntry{ApplicantID: id, Score: r.Score, Rank: r.Rank})
	}

	moved, err := s.store.ArchiveApplicants(ctx, run.ID, entries)
	if err != nil {
		return 0, fmt.Errorf("archive applicants: %w", err)
	}
	if err := s.store.MarkRunArchived(ctx, run.ID); err != nil {
		return 0, fmt.Errorf("mark run archived: %w", err)
	}
	run.Archived = true
	applicantsArchived.Add(float64(moved))

	s.logger.Info("applicants archived", "run_id", run.ID, "count", moved)
	if s.hermes != nil {
		_ = s.hermes.Publish(hermes.SubjectApplicantsArchived, hermes.ApplicantsArchivedEvent{
			RunID: run.ID.String(),
			Count: moved,
		})
	}
	return moved, nil
}

// Consistency reports on the saved pairwise matrix when it matches the
// current criteria, otherwise on the matrix reconstructed from the stored
// weights.
func (s *Service) Consistency(ctx context.Context) (*ConsistencyReport, error) {
	criteria, err := s.store.ListCriteria(ctx)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	if len(criteria) == 0 {
		return nil, &decision.DataError{Op: "consistency", Msg: "criteria set is empty"}
	}
	names := make([]string, len(criteria))
	weights := make([]float64, len(criteria))
	for i, c := range criteria {
		names[i] = c.Name
		weights[i] = c.Weight
	}

	pw, err := s.store.GetPairwise(ctx, s.cfg.Evaluation.PairwiseName)
	if err != nil {
		return nil, fmt.Errorf("get pairwise matrix: %w", err)
	}
	if pw != nil && len(pw.Matrix) == len(criteria) {
		cm, err := decision.Analyze(pw.Matrix)
		if err != nil {
			return nil, err
		}
		return s.report("pairwise", names, pw.Matrix, cm), nil
	}

	cm, m, err := decision.FromWeights(weights)
	if err != nil {
		return nil, err
	}
	return s.report("weights", names, m, cm), nil
}

// SubmitPairwise analyzes and saves the criteria comparison matrix under the
// configured name.
func (s *Service) SubmitPairwise(ctx context.Context, m decision.Matrix) (*ConsistencyReport, error) {
	criteria, err := s.store.ListCriteria(ctx)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	if len(m) != len(criteria) {
		return nil, &decision.ValidationError{
			Op:  "submit pairwise",
			Msg: fmt.Sprintf("matrix has %d rows for %d criteria", len(m), len(criteria)),
		}
	}
	cm, err := decision.Analyze(m)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(criteria))
	for i, c := range criteria {
		names[i] = c.Name
	}
	pw := &store.PairwiseMatrix{Name: s.cfg.Evaluation.PairwiseName, Criteria: names, Matrix: m.Clone()}
	if err := s.store.SavePairwise(ctx, pw); err != nil {
		return nil, fmt.Errorf("save pairwise matrix: %w", err)
	}

	s.logger.Info("pairwise matrix saved", "name", pw.Name, "cr", cm.CR)
	if s.hermes != nil {
		_ = s.hermes.Publish(hermes.SubjectPairwiseUpdated, hermes.PairwiseUpdatedEvent{
			Name:      pw.Name,
			Criteria:  names,
			LambdaMax: cm.LambdaMax,
			CR:        cm.CR,
			Weights:   cm.Weights,
		})
	}
	return s.report("pairwise", names, m, cm), nil
}

// DeletePairwise removes the saved matrix so weights are used again.
func (s *Service) DeletePairwise(ctx context.Context) error {
	return s.store.DeletePairwise(ctx, s.cfg.Evaluation.PairwiseName)
}

// AggregatePairwise combines several judges' matrices by geometric mean and
// analyzes the result, saving it when save is set.
func (s *Service) AggregatePairwise(ctx context.Context, matrices []decision.Matrix, save bool) (*ConsistencyReport, error) {
	agg, err := decision.AggregateGeometric(matrices)
	if err != nil {
		return nil, err
	}
	if save {
		return s.SubmitPairwise(ctx, agg)
	}
	cm, err := decision.Analyze(agg)
	if err != nil {
		return nil, err
	}
	return s.report("aggregate", nil, agg, cm), nil
}

func (s *Service) report(source string, names []string, m decision.Matrix, cm *decision.ConsistencyMetrics) *ConsistencyReport {
	threshold := s.cfg.Engine.ConsistencyThreshold
	return &ConsistencyReport{
		Source:     source,
		Criteria:   names,
		Matrix:     m,
		Metrics:    *cm,
		Threshold:  threshold,
		Acceptable: cm.Acceptable(threshold),
	}
}

// SetupSubscriptions lets evaluations be triggered over NATS.
func (s *Service) SetupSubscriptions() {
	if s.hermes == nil {
		return
	}

	err := s.hermes.Subscribe(hermes.SubjectEvaluationRequest, func(_ string, data []byte) {
		var ev hermes.EvaluationRequestEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("invalid evaluation request event", "error", err)
			return
		}
		if ev.RequestID == "" {
			ev.RequestID = uuid.NewString()
		}
		req := RunRequest{Method: decision.Method(ev.Method), Archive: ev.Archive}
		if _, err := s.Run(context.Background(), req); err != nil {
			s.logger.Error("evaluation request failed", "request_id", ev.RequestID, "error", err)
			_ = s.hermes.Publish(hermes.SubjectEvaluationFailed(ev.RequestID), hermes.EvaluationFailedEvent{
				RequestID: ev.RequestID,
				Error:     err.Error(),
			})
		}
	})
	if err != nil {
		s.logger.Warn("failed to subscribe to evaluation requests", "error", err)
	}
}
