// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RecordsReceived      *prometheus.CounterVec
	RecordsPublished     *prometheus.CounterVec
	RecordsDeadLettered  *prometheus.CounterVec
	ValidationFailures   *prometheus.CounterVec
	PublishAttempts      prometheus.Histogram
	PublishLatency       prometheus.Histogram
	FallbackLogged       prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	BatchRowsTotal       *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RecordsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_received_total",
				Help: "Candidate records received by source (stream, batch) and record type.",
			},
			[]string{"source", "record_type"},
		),
		RecordsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_published_total",
				Help: "Records delivered to the primary topic by record type.",
			},
			[]string{"record_type"},
		),
		RecordsDeadLettered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_dead_lettered_total",
				Help: "Records routed to the dead-letter topic by failure stage.",
			},
			[]string{"stage"},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_validation_failures_total",
				Help: "Validation rule violations by record type and rule.",
			},
			[]string{"record_type", "rule"},
		),
		PublishAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_publish_attempts",
				Help:    "Publish attempts consumed per record before a terminal outcome.",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		PublishLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_publish_latency_seconds",
				Help:    "End-to-end publish latency per record, retries included.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		FallbackLogged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_deadletter_fallback_logged_total",
				Help: "Envelopes written to the local fallback log because the dead-letter topic was unavailable.",
			},
		),
		DuplicatesSuppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_duplicates_suppressed_total",
				Help: "Stream submissions suppressed by the duplicate-delivery guard.",
			},
		),
		BatchRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_batch_rows_total",
				Help: "CSV rows processed by the batch driver, by outcome.",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RecordsReceived,
		m.RecordsPublished,
		m.RecordsDeadLettered,
		m.ValidationFailures,
		m.PublishAttempts,
		m.PublishLatency,
		m.FallbackLogged,
		m.DuplicatesSuppressed,
		m.BatchRowsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
