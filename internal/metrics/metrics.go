// Package metrics provides application-level Prometheus metrics. They register on
// the default registry and are served by Handler at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission counters.
var (
	AdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_entries_admitted_total",
		Help: "Entries that passed validation and were stored",
	})
	RejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_entries_rejected_total",
		Help: "Candidate entries that failed schema validation",
	})
	StaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_entries_stale_total",
		Help: "Puts refused because the stored version was not older",
	})
	IngestRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_ingest_runs_total",
		Help: "Completed ingestion runs",
	})
)

// Corpus gauges, refreshed after every ingestion run.
var (
	CorpusEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ladder_corpus_entries",
		Help: "Entries in the serving corpus, deprecated included",
	})
	DanglingReferences = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ladder_dangling_references",
		Help: "Cross-references whose target is not in the corpus",
	})
)

// Query counters.
var (
	SearchQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_search_queries_total",
		Help: "Full-text search queries served",
	})
	ReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_reviews_total",
		Help: "Ladder reviews by reviewer and outcome",
	}, []string{"reviewer", "outcome"})
)

// HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code",
	}, []string{"route", "method", "status"})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ladder_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
