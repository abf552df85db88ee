// Package metrics records ingest and summary counters with Prometheus
// collectors. A nil *Recorder is valid and records nothing, so callers never
// need to check whether metrics are enabled.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service's collectors and the registry they live in.
type Recorder struct {
	reg *prometheus.Registry

	uploads      *prometheus.CounterVec   // ingest_uploads_total
	rows         *prometheus.CounterVec   // ingest_rows_total
	batches      prometheus.Counter       // ingest_batches_total
	summaries    *prometheus.CounterVec   // summary_requests_total
	httpDuration *prometheus.HistogramVec // http_request_duration_seconds
}

// New builds a Recorder on a private registry, including Go runtime and
// process collectors.
func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		reg: reg,
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_uploads_total",
				Help: "CSV uploads partitioned by outcome (success, rejected, failure).",
			},
			[]string{"status"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_rows_total",
				Help: "Committed row counts per kind (inserted, duplicate).",
			},
			[]string{"kind"},
		),
		batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_batches_total",
				Help: "Batches flushed to the store.",
			},
		),
		summaries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summary_requests_total",
				Help: "Summary lookups partitioned by outcome (hit, miss, empty, rejected, failure).",
			},
			[]string{"status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency partitioned by method, route and status code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	cs := []prometheus.Collector{
		r.uploads, r.rows, r.batches, r.summaries, r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return r, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// RecordUpload counts one upload with the given outcome.
func (r *Recorder) RecordUpload(status string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(status).Inc()
}

// RecordRows adds n rows of the given kind.
func (r *Recorder) RecordRows(kind string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.rows.WithLabelValues(kind).Add(float64(n))
}

// RecordBatches adds n flushed batches.
func (r *Recorder) RecordBatches(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.batches.Add(float64(n))
}

// RecordSummary counts one summary lookup with the given outcome.
func (r *Recorder) RecordSummary(status string) {
	if r == nil {
		return
	}
	r.summaries.WithLabelValues(status).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(method, route, fmt.Sprint(status)).Observe(d.Seconds())
}
