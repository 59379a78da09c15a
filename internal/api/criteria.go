package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
	"github.com/MikeSquared-Agency/Kredit/internal/evaluation"
	"github.com/MikeSquared-Agency/Kredit/internal/store"
)

type CriteriaHandler struct {
	store        store.Store
	svc          *evaluation.Service
	pairwiseName string
	logger       *slog.Logger
}

func NewCriteriaHandler(s store.Store, svc *evaluation.Service, pairwiseName string, logger *slog.Logger) *CriteriaHandler {
	return &CriteriaHandler{store: s, svc: svc, pairwiseName: pairwiseName, logger: logger}
}

type CriterionRequest struct {
	Name     string  `json:"name" validate:"required"`
	Weight   float64 `json:"weight" validate:"gte=0"`
	Kind     string  `json:"kind,omitempty" validate:"omitempty,oneof=benefit cost"`
	Position int     `json:"position"`
}

type PairwiseRequest struct {
	Matrix decision.Matrix `json:"matrix" validate:"required,min=1"`
}

type AggregateRequest struct {
	Matrices []decision.Matrix `json:"matrices" validate:"required,min=1"`
	Save     bool              `json:"save"`
}

func (h *CriteriaHandler) List(w http.ResponseWriter, r *http.Request) {
	criteria, err := h.store.ListCriteria(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if criteria == nil {
		criteria = []*store.Criterion{}
	}
	writeJSON(w, http.StatusOK, criteria)
}

func (h *CriteriaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CriterionRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	c := &store.Criterion{Name: req.Name, Weight: req.Weight, Kind: req.Kind, Position: req.Position}
	if err := h.store.CreateCriterion(r.Context(), c); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CriteriaHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req CriterionRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	c, err := h.store.GetCriterion(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "criterion not found"})
		return
	}
	c.Name = req.Name
	c.Weight = req.Weight
	c.Kind = req.Kind
	c.Position = req.Position
	if err := h.store.UpdateCriterion(r.Context(), c); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CriteriaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.store.DeleteCriterion(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CriteriaHandler) GetPairwise(w http.ResponseWriter, r *http.Request) {
	pw, err := h.store.GetPairwise(r.Context(), h.pairwiseName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if pw == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pairwise matrix saved"})
		return
	}
	writeJSON(w, http.StatusOK, pw)
}

func (h *CriteriaHandler) PutPairwise(w http.ResponseWriter, r *http.Request) {
	var req PairwiseRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	report, err := h.svc.SubmitPairwise(r.Context(), req.Matrix)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *CriteriaHandler) DeletePairwise(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePairwise(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CriteriaHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	report, err := h.svc.AggregatePairwise(r.Context(), req.Matrices, req.Save)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *CriteriaHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Consistency(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
