package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline and upstream metrics.
var (
	IngestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome",
		},
		[]string{"outcome"},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of successful ingestion runs",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	PagesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_ingested_total",
			Help:      "Pages embedded and written to the vector index",
		},
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "answers_total",
			Help:      "Question answering requests by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to external collaborators by service, operation and status",
		},
		[]string{"service", "op", "status"},
	)

	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Duration of calls to external collaborators, retries included",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "op"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries performed after a retryable upstream failure",
		},
		[]string{"service", "op"},
	)
)

var pipelineOnce sync.Once

// RegisterPipelineMetrics registers ingestion, answer and upstream metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(
			IngestRunsTotal,
			IngestDuration,
			PagesIngestedTotal,
			AnswersTotal,
			UpstreamCallsTotal,
			UpstreamCallDuration,
			RetryAttemptsTotal,
		)
	})
}
