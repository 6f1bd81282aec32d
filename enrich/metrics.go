package enrich

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the enrichment pipeline. A nil
// *Metrics is valid and records nothing, so the pipeline works unchanged
// when metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry

	fetchesTotal   *prometheus.CounterVec
	cacheHitsTotal prometheus.Counter
	fetchSeconds   prometheus.Histogram
	truncations    prometheus.Counter
}

// NewMetrics creates enrichment metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docqa_enrich_fetches_total",
				Help: "Total URL fetches by result (success or failure kind)",
			},
			[]string{"result"},
		),
		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docqa_enrich_cache_hits_total",
				Help: "Total fetch-cache hits",
			},
		),
		fetchSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docqa_enrich_fetch_duration_seconds",
				Help:    "Duration of URL fetches including retries",
				Buckets: prometheus.DefBuckets,
			},
		),
		truncations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docqa_enrich_truncations_total",
				Help: "Total cleaned contents cut at the configured maximum length",
			},
		),
	}

	m.registry.MustRegister(m.fetchesTotal, m.cacheHitsTotal, m.fetchSeconds, m.truncations)
	return m
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordFetch(result string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(result).Inc()
	m.fetchSeconds.Observe(seconds)
}

func (m *Metrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

func (m *Metrics) recordTruncation() {
	if m == nil {
		return
	}
	m.truncations.Inc()
}
