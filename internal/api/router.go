package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Kredit/internal/config"
	"github.com/MikeSquared-Agency/Kredit/internal/evaluation"
	"github.com/MikeSquared-Agency/Kredit/internal/report"
	"github.com/MikeSquared-Agency/Kredit/internal/store"
)

func NewRouter(s store.Store, svc *evaluation.Service, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.Server.RateLimit))

	criteria := NewCriteriaHandler(s, svc, cfg.Evaluation.PairwiseName, logger)
	applicants := NewApplicantsHandler(s, logger)
	evaluations := NewEvaluationsHandler(s, svc, report.NewWriter(cfg.Report.Labels), cfg.Report.TopN, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/criteria", criteria.List)
		r.Post("/criteria", criteria.Create)
		r.Get("/criteria/pairwise", criteria.GetPairwise)
		r.Put("/criteria/pairwise", criteria.PutPairwise)
		r.Delete("/criteria/pairwise", criteria.DeletePairwise)
		r.Post("/criteria/pairwise/aggregate", criteria.Aggregate)
		r.Get("/criteria/consistency", criteria.Consistency)
		r.Put("/criteria/{id}", criteria.Update)
		r.Delete("/criteria/{id}", criteria.Delete)

		r.Get("/applicants", applicants.List)
		r.Post("/applicants", applicants.Create)
		r.Get("/applicants/archived", applicants.Archived)
		r.Get("/applicants/{id}", applicants.Get)
		r.Put("/applicants/{id}", applicants.Update)
		r.Delete("/applicants/{id}", applicants.Delete)

		r.Post("/evaluations", evaluations.Create)
		r.Get("/evaluations", evaluations.List)
		r.Get("/evaluations/{id}", evaluations.Get)
		r.Get("/evaluations/{id}/export", evaluations.Export)

		r.Post("/rank", evaluations.Rank)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Post("/evaluations/{id}/archive", evaluations.Archive)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
