// internal/common/metrics/metrics.go
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

	// QueriesRouted counts classifier decisions.
	QueriesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_routed_total",
			Help: "Queries routed per answering mode",
		},
		[]string{"mode"},
	)

	// EvidenceFallbacks counts which path built the page summaries.
	EvidenceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_evidence_fallback_total",
			Help: "Web strategy runs per fallback state",
		},
		[]string{"state"},
	)

	PagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_pages_processed_total",
			Help: "Opened and summarized pages per outcome",
		},
		[]string{"outcome"},
	)

	// AnswerRepairs counts finalizer outcomes: valid, repaired, exhausted.
	AnswerRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_answer_finalize_total",
			Help: "Finalizer outcomes",
		},
		[]string{"outcome"},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_gateway_calls_total",
			Help: "Model gateway calls per provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_gateway_call_duration_seconds",
			Help:    "Model gateway call latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"provider"},
	)

	EvidenceCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_cache_requests_total",
			Help: "Evidence cache lookups per kind and result",
		},
		[]string{"kind", "result"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_answer_duration_seconds",
			Help:    "End to end answer latency per mode",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"mode"},
	)
)
