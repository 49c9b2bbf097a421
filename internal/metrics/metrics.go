package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records
// nothing, which keeps tests and library callers free of registry plumbing.
type Metrics struct {
	registry *prometheus.Registry

	FetchOutcomes     *prometheus.CounterVec
	CollectorDuration prometheus.Histogram
	CollectorPages    prometheus.Histogram
	StageDuration     *prometheus.HistogramVec
	LLMRequests       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		FetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniqa",
			Name:      "fetch_outcomes_total",
			Help:      "Page fetch outcomes by status.",
		}, []string{"status"}),
		CollectorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uniqa",
			Name:      "collector_duration_seconds",
			Help:      "Wall time of one bounded fan-out collection.",
			Buckets:   []float64{.05, .1, .25, .5, .75, 1, 1.5, 2, 5},
		}),
		CollectorPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uniqa",
			Name:      "collector_pages",
			Help:      "Pages accepted per collection.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uniqa",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of answer pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniqa",
			Name:      "llm_requests_total",
			Help:      "Language model calls by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniqa",
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchOutcomes, m.CollectorDuration, m.CollectorPages,
		m.StageDuration, m.LLMRequests, m.HTTPRequests,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(status string) {
	if m == nil {
		return
	}
	m.FetchOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCollection(seconds float64, pages int) {
	if m == nil {
		return
	}
	m.CollectorDuration.Observe(seconds)
	m.CollectorPages.Observe(float64(pages))
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) ObserveLLM(outcome string) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
}
