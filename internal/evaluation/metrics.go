package evaluation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kredit_evaluations_total",
			Help: "Evaluations run, by method and outcome.",
		},
		[]string{"method", "status"},
	)
	evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kredit_evaluation_duration_seconds",
			Help:    "Time spent scoring one evaluation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	applicantsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kredit_applicants_scored_total",
		Help: "Applicants ranked across all evaluations.",
	})
	applicantsIneligible = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kredit_applicants_ineligible_total",
		Help: "Applicants excluded by the eligibility rule.",
	})
	applicantsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kredit_applicants_archived_total",
		Help: "Applicants moved to the archive after evaluation.",
	})
	criteriaConsistencyRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kredit_criteria_consistency_ratio",
		Help: "Consistency ratio of the criteria weights used by the latest evaluation.",
	})
)
