package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
	"github.com/MikeSquared-Agency/Kredit/internal/evaluation"
	"github.com/MikeSquared-Agency/Kredit/internal/report"
	"github.com/MikeSquared-Agency/Kredit/internal/store"
)

type EvaluationsHandler struct {
	store   store.Store
	svc     *evaluation.Service
	reports *report.Writer
	topN    int
	logger  *slog.Logger
}

func NewEvaluationsHandler(s store.Store, svc *evaluation.Service, reports *report.Writer, topN int, logger *slog.Logger) *EvaluationsHandler {
	return &EvaluationsHandler{store: s, svc: svc, reports: reports, topN: topN, logger: logger}
}

// RankResponse is the stateless ranking result.
type RankResponse struct {
	Evaluation *decision.Evaluation   `json:"evaluation"`
	Top        []decision.ScoreResult `json:"top"`
}

type RunDetail struct {
	Run        *store.EvaluationRun `json:"run"`
	Evaluation *decision.Evaluation `json:"evaluation"`
}

func (h *EvaluationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req evaluation.RunRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	result, err := h.svc.Run(r.Context(), req)
	if err != nil && result != nil {
		h.logger.Error("evaluation archive failed", "run_id", result.Run.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "run saved but archive failed",
			"run_id": result.Run.ID,
		})
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result.Run.Result = nil
	writeJSON(w, http.StatusCreated, result)
}

func (h *EvaluationsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListEvaluationRuns(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if runs == nil {
		runs = []*store.EvaluationRun{}
	}
	for _, run := range runs {
		run.Result = nil
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *EvaluationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	run, eval, err := h.svc.Result(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	run.Result = nil
	writeJSON(w, http.StatusOK, RunDetail{Run: run, Evaluation: eval})
}

func (h *EvaluationsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	_, eval, err := h.svc.Result(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ranking-%s.%s"`, id, format))
	if err := h.reports.Write(w, format, eval); err != nil {
		h.logger.Error("export failed", "run_id", id, "format", format, "error", err)
	}
}

func (h *EvaluationsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	moved, err := h.svc.Archive(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": id, "archived": moved})
}

// Rank scores the applicants in the request body without touching the store.
func (h *EvaluationsHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var req decision.Request
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Method == "" {
		req.Method = decision.MethodSAW
	}
	eval, err := h.svc.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{Evaluation: eval, Top: eval.Top(h.topN)})
}
