// Package metrics exposes Prometheus collectors for search, cache, indexing
// and HTTP traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogsearch"

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	searchDuration *prometheus.HistogramVec
	searchDegraded *prometheus.CounterVec
	cacheRequests  *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	indexCommits   *prometheus.CounterVec
	versionBumps   prometheus.Counter
	indexedDocs    prometheus.Gauge
	httpDuration   *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
}

// New creates Metrics on a fresh registry, including Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search request duration in seconds",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache"}, // "hit" / "miss" / "off"
		),
		searchDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_degraded_total",
				Help:      "Searches answered in degraded mode",
			},
			[]string{"reason"}, // "query_syntax" / "store_error"
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Result cache lookups",
			},
			[]string{"result"},
		),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Result cache entries evicted or expired",
		}),
		indexCommits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_commits_total",
				Help:      "Index mutations by operation and outcome",
			},
			[]string{"op", "result"},
		),
		versionBumps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_version_bumps_total",
			Help:      "Cache version token replacements",
		}),
		indexedDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_documents",
			Help:      "Live documents after the last reindex",
		}),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searchDuration,
		m.searchDegraded,
		m.cacheRequests,
		m.cacheEvictions,
		m.indexCommits,
		m.versionBumps,
		m.indexedDocs,
		m.httpDuration,
		m.httpRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSearch records one search. cache is "hit", "miss" or "off".
func (m *Metrics) ObserveSearch(d time.Duration, cache string) {
	m.searchDuration.WithLabelValues(cache).Observe(d.Seconds())
}

// SearchDegraded counts a degraded search by reason.
func (m *Metrics) SearchDegraded(reason string) {
	m.searchDegraded.WithLabelValues(reason).Inc()
}

// IndexCommit counts a mutation outcome.
func (m *Metrics) IndexCommit(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.indexCommits.WithLabelValues(op, result).Inc()
}

// VersionBumped counts a cache version replacement.
func (m *Metrics) VersionBumped() {
	m.versionBumps.Inc()
}

// SetIndexedDocuments records the live document count.
func (m *Metrics) SetIndexedDocuments(n int) {
	m.indexedDocs.Set(float64(n))
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit() {
	m.cacheRequests.WithLabelValues("hit").Inc()
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss() {
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// CacheEvicted implements cache.Observer.
func (m *Metrics) CacheEvicted() {
	m.cacheEvictions.Inc()
}
