// Package metrics exposes Prometheus collectors for the archive service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestIssuesTotal           *prometheus.CounterVec
	ingestRunsTotal             *prometheus.CounterVec
	ingestStepDurationSeconds   *prometheus.HistogramVec
	fetchBytesTotal             *prometheus.CounterVec
	extractionTotal             *prometheus.CounterVec
	orphanedObjectsTotal        prometheus.Counter
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	fetchRateLimitDelaysSeconds *prometheus.HistogramVec
	lookupStageTotal            *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestIssuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_ingest_issues_total",
				Help: "Total number of issues processed by ingestion, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_ingest_runs_total",
				Help: "Total number of ingestion runs, labeled by status.",
			},
			[]string{"status"},
		)

		ingestStepDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_ingest_step_duration_seconds",
				Help:    "Histogram of per-issue pipeline step latencies, labeled by step.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"step"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_fetch_bytes_total",
				Help: "Total number of document bytes downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		extractionTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_extraction_total",
				Help: "Total number of text extractions, labeled by result.",
			},
			[]string{"result"},
		)

		orphanedObjectsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "archive_orphaned_objects_total",
				Help: "Documents uploaded whose metadata row could not be written.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		fetchRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_fetch_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		lookupStageTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_lookup_stage_total",
				Help: "Identifier lookups, labeled by the stage that resolved them.",
			},
			[]string{"stage"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIssue increments the per-outcome issue counter.
func ObserveIssue(outcome string) {
	Init()
	ingestIssuesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun increments the run counter for the given status.
func ObserveRun(status string) {
	Init()
	ingestRunsTotal.WithLabelValues(status).Inc()
}

// ObserveStep records how long a pipeline step took.
func ObserveStep(step string, duration time.Duration) {
	Init()
	ingestStepDurationSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

// ObserveFetch adds downloaded bytes for the document's site.
func ObserveFetch(documentURL string, bytesFetched int64) {
	Init()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(SanitizeSite(documentURL)).Add(float64(bytesFetched))
	}
}

// ObserveExtraction counts extraction results ("ok", "empty", "error").
func ObserveExtraction(result string) {
	Init()
	extractionTotal.WithLabelValues(result).Inc()
}

// ObserveOrphanedObject counts uploads left without a metadata row.
func ObserveOrphanedObject() {
	Init()
	orphanedObjectsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	fetchRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveLookupStage counts which identifier lookup stage resolved a request.
func ObserveLookupStage(stage string) {
	Init()
	lookupStageTotal.WithLabelValues(stage).Inc()
}
