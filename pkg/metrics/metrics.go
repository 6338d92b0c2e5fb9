// Package metrics defines the Prometheus collectors for pipeline runs and
// serves them for scraping. Collectors register with an injected
// Registerer so tests and repeated runs in one process do not collide on the
// global registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	KindRunsTotal       *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	LinesRead           *prometheus.CounterVec
	TermsCounted        *prometheus.CounterVec
	DistinctTerms       *prometheus.GaugeVec
	RowsPersisted       *prometheus.CounterVec
	PersistBatches      *prometheus.CounterVec
	CacheOpsTotal       *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec

	// Ops server (/metrics, /health/*).
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_runs_total",
				Help: "Pipeline runs by outcome (success, failure).",
			},
			[]string{"status"},
		),
		KindRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_kind_runs_total",
				Help: "Per-kind pipeline executions by outcome.",
			},
			[]string{"kind", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wordfreq_stage_duration_seconds",
				Help:    "Duration of each pipeline stage.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"kind", "stage"},
		),
		LinesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_lines_read_total",
				Help: "Corpus lines read.",
			},
			[]string{"kind"},
		),
		TermsCounted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_terms_counted_total",
				Help: "Term occurrences counted.",
			},
			[]string{"kind"},
		),
		DistinctTerms: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wordfreq_distinct_terms",
				Help: "Distinct terms in the most recent run.",
			},
			[]string{"kind"},
		),
		RowsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_rows_persisted_total",
				Help: "Categorized rows committed to the store.",
			},
			[]string{"kind", "category"},
		),
		PersistBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_persist_batches_total",
				Help: "Persist transactions by kind and outcome (committed, failed).",
			},
			[]string{"kind", "status"},
		),
		CacheOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_cache_operations_total",
				Help: "Result cache operations by result (hit, miss, stored, error).",
			},
			[]string{"op", "result"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_events_published_total",
				Help: "Run events published by type and outcome.",
			},
			[]string{"type", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wordfreq_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordfreq_http_requests_total",
				Help: "Ops server requests by path and status code.",
			},
			[]string{"path", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wordfreq_http_request_duration_seconds",
				Help:    "Ops server request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wordfreq_http_requests_in_flight",
				Help: "Ops server requests currently being served.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.RunsTotal,
			m.KindRunsTotal,
			m.StageDuration,
			m.LinesRead,
			m.TermsCounted,
			m.DistinctTerms,
			m.RowsPersisted,
			m.PersistBatches,
			m.CacheOpsTotal,
			m.EventsPublished,
			m.CircuitBreakerState,
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.HTTPRequestsInFlight,
		)
	}
	return m
}

// Handler returns the scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
