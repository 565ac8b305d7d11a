package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "photovault"

// PrometheusRecorder exports metrics on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	auth           *prometheus.CounterVec
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram
	ingest         *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
}

// NewPrometheus registers all collectors, plus Go and process collectors,
// on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Authentication gateway decisions by outcome.",
		}, []string{"outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Semantic searches by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency including embedding and index query.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		}),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_jobs_total",
			Help:      "Caption indexing jobs by outcome.",
		}, []string{"outcome"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Embedding model and vector index failures by kind.",
		}, []string{"kind"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.auth,
		p.searches,
		p.searchDuration,
		p.searchResults,
		p.ingest,
		p.upstreamErrors,
	)

	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// RecordAuth implements Recorder.
func (p *PrometheusRecorder) RecordAuth(outcome string) {
	p.auth.WithLabelValues(outcome).Inc()
}

// RecordSearch implements Recorder.
func (p *PrometheusRecorder) RecordSearch(outcome string, duration time.Duration, results int) {
	p.searches.WithLabelValues(outcome).Inc()
	p.searchDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		p.searchResults.Observe(float64(results))
	}
}

// RecordIngest implements Recorder.
func (p *PrometheusRecorder) RecordIngest(outcome string) {
	p.ingest.WithLabelValues(outcome).Inc()
}

// RecordUpstreamError implements Recorder.
func (p *PrometheusRecorder) RecordUpstreamError(kind string) {
	p.upstreamErrors.WithLabelValues(kind).Inc()
}
