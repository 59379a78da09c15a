package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Kredit/internal/store"
)

type ApplicantsHandler struct {
	store  store.Store
	logger *slog.Logger
}

func NewApplicantsHandler(s store.Store, logger *slog.Logger) *ApplicantsHandler {
	return &ApplicantsHandler{store: s, logger: logger}
}

type ApplicantRequest struct {
	Name       string                 `json:"name" validate:"required"`
	Attributes map[string]interface{} `json:"attributes" validate:"required"`
}

func (h *ApplicantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ApplicantRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	a := &store.Applicant{Name: req.Name, Attributes: req.Attributes}
	if err := h.store.CreateApplicant(r.Context(), a); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *ApplicantsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ApplicantFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	applicants, err := h.store.ListApplicants(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if applicants == nil {
		applicants = []*store.Applicant{}
	}
	writeJSON(w, http.StatusOK, applicants)
}

func (h *ApplicantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	a, err := h.store.GetApplicant(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "applicant not found"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ApplicantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req ApplicantRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	a, err := h.store.GetApplicant(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "applicant not found"})
		return
	}
	a.Name = req.Name
	a.Attributes = req.Attributes
	if err := h.store.UpdateApplicant(r.Context(), a); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ApplicantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.store.DeleteApplicant(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ApplicantsHandler) Archived(w http.ResponseWriter, r *http.Request) {
	archived, err := h.store.ListArchived(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if archived == nil {
		archived = []*store.ArchivedApplicant{}
	}
	writeJSON(w, http.StatusOK, archived)
}
