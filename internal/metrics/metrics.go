// Package metrics exposes Prometheus collectors for the retrieval core.
//
// Collectors live on a private registry so several instances (tests, one
// per process) never collide. Every recording method is safe on a nil
// *Metrics, which lets components take metrics as an optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "medcontext"

// Metrics groups every collector the service records
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal        *prometheus.CounterVec
	SearchDuration      *prometheus.HistogramVec
	UpstreamErrorsTotal *prometheus.CounterVec
	LLMDuration         prometheus.Histogram
	IndexBuildDuration  *prometheus.HistogramVec
	IndexDocuments      *prometheus.GaugeVec
	ToolCallsTotal      *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Assistant queries by route",
			},
			[]string{"route"},
		),

		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Index search latency",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"mode"},
		),

		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Failures of the embedding or language model service",
			},
			[]string{"service"},
		),

		LLMDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_duration_seconds",
				Help:      "Language model generation latency",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		IndexBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_duration_seconds",
				Help:      "Time spent building an index",
				Buckets:   []float64{.01, .1, .5, 1, 5, 15, 60, 300},
			},
			[]string{"index"},
		),

		IndexDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_documents",
				Help:      "Documents held by each index",
			},
			[]string{"index"},
		),

		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mcp_tool_calls_total",
				Help:      "MCP tool invocations",
			},
			[]string{"tool", "status"},
		),
	}

	m.registry.MustRegister(
		m.QueriesTotal,
		m.SearchDuration,
		m.UpstreamErrorsTotal,
		m.LLMDuration,
		m.IndexBuildDuration,
		m.IndexDocuments,
		m.ToolCallsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveQuery(route string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveSearch(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstreamError(service string) {
	if m == nil {
		return
	}
	m.UpstreamErrorsTotal.WithLabelValues(service).Inc()
}

func (m *Metrics) ObserveLLM(d time.Duration) {
	if m == nil {
		return
	}
	m.LLMDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveIndexBuild(index string, d time.Duration, documents int) {
	if m == nil {
		return
	}
	m.IndexBuildDuration.WithLabelValues(index).Observe(d.Seconds())
	m.IndexDocuments.WithLabelValues(index).Set(float64(documents))
}

func (m *Metrics) ObserveToolCall(tool string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
