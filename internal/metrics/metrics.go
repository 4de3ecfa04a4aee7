// Package metrics holds the Prometheus collectors of the invoice pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "upnqr"

// Pipeline stage labels.
const (
	StageExtractText = "extract_text"
	StageExtract     = "extract_record"
	StageBuild       = "build_payload"
	StageEncode      = "encode_symbol"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	stages   *prometheus.CounterVec
	cache    *prometheus.CounterVec
	render   prometheus.Histogram
	requests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_total",
			Help:      "Pipeline stage executions by outcome.",
		}, []string{"stage", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_cache_lookups_total",
			Help:      "Extraction cache lookups by result.",
		}, []string{"result"}),
		render: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent building the payload and drawing the symbol.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.stages, m.cache, m.render, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Stage counts one execution of stage. A nil err is recorded as "ok".
func (m *Metrics) Stage(stage string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stages.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRender(d time.Duration) {
	m.render.Observe(d.Seconds())
}

func (m *Metrics) Request(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
