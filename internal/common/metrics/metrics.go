package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_search_requests_total",
			Help: "Mandate searches by outcome",
		},
		[]string{"status"},
	)

	CandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_candidates_scored_total",
			Help: "Candidate companies scored against a mandate",
		},
	)

	CandidatesVetoed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_candidates_vetoed_total",
			Help: "Candidate companies dropped by a hard veto",
		},
		[]string{"reason"},
	)

	WeightRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_weight_recomputes_total",
			Help: "Per-mandate weight recomputations by outcome",
		},
		[]string{"outcome"},
	)

	MalformedSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_malformed_signals_total",
			Help: "Learning signals skipped during aggregation",
		},
	)
)
