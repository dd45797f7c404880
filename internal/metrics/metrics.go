// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. All methods are safe on a nil receiver.
type Metrics struct {
	reg *prometheus.Registry

	// Requests by operation and terminal state.
	Requests *prometheus.CounterVec

	// Retrieval attempts by outcome.
	Retrievals *prometheus.CounterVec

	// Generation latency by operation and result.
	GenerationLatency *prometheus.HistogramVec

	// Knowledge base indexing jobs by outcome.
	IngestJobs *prometheus.CounterVec

	// Build information; always 1.
	BuildInfo *prometheus.GaugeVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curador_requests_total",
			Help: "Curation and categorization requests by terminal state",
		}, []string{"op", "state"}), // op: "curate", "categorize"

		Retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curador_retrievals_total",
			Help: "Knowledge base lookups by outcome",
		}, []string{"outcome"}), // outcome: "unconfigured", "empty", "found", "failed"

		GenerationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curador_generation_duration_seconds",
			Help:    "Duration of generation backend calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"op", "result"}),

		IngestJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curador_ingest_jobs_total",
			Help: "Knowledge base indexing jobs by outcome",
		}, []string{"outcome"}), // outcome: "indexed", "retry", "failed"

		BuildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curador_build_info",
			Help: "Build and backend information",
		}, []string{"version", "backend", "model", "partition"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveRequest records a request reaching a terminal state.
func (m *Metrics) ObserveRequest(op, state string) {
	if m != nil {
		m.Requests.WithLabelValues(op, state).Inc()
	}
}

// ObserveRetrieval records a retrieval outcome.
func (m *Metrics) ObserveRetrieval(outcome string) {
	if m != nil {
		m.Retrievals.WithLabelValues(outcome).Inc()
	}
}

// ObserveGeneration records the duration of one backend call.
func (m *Metrics) ObserveGeneration(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GenerationLatency.WithLabelValues(op, result).Observe(d.Seconds())
}

// ObserveIngest records an indexing job outcome.
func (m *Metrics) ObserveIngest(outcome string) {
	if m != nil {
		m.IngestJobs.WithLabelValues(outcome).Inc()
	}
}

// SetBuildInfo publishes the running configuration.
func (m *Metrics) SetBuildInfo(version, backend, model, partition string) {
	if m != nil {
		m.BuildInfo.WithLabelValues(version, backend, model, partition).Set(1)
	}
}
