// Package metrics exposes Prometheus instruments for the response cache, the
// relationship resolvers and the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup outcomes used as the "result" label.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
	ResultError  = "error"
	ResultShared = "shared"
)

// Metrics holds every instrument. All methods are safe on a nil receiver so
// components can run without a registry in tests.
type Metrics struct {
	gatherer prometheus.Gatherer

	CacheLookups   *prometheus.CounterVec
	CacheStores    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheEntries   prometheus.Gauge

	ResolverDuration *prometheus.HistogramVec
	ResolverBatch    prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers all instruments on reg under namespace.
func New(reg *prometheus.Registry, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response_cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"result"}),
		CacheStores: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response_cache",
			Name:      "stores_total",
			Help:      "Responses written to the cache",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response_cache",
			Name:      "evictions_total",
			Help:      "Expired entries removed by the sweeper",
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "response_cache",
			Name:      "entries",
			Help:      "Entries held after the last sweep",
		}),

		ResolverDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Relationship resolver latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"resolver"}),
		ResolverBatch: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "latest_batch_size",
			Help:      "Series per latest-chapter batch",
			Buckets:   []float64{1, 5, 10, 24, 50, 100, 250, 1000},
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheStored() {
	if m == nil {
		return
	}
	m.CacheStores.Inc()
}

func (m *Metrics) CacheSwept(removed int, remaining int) {
	if m == nil {
		return
	}
	m.CacheEvictions.Add(float64(removed))
	m.CacheEntries.Set(float64(remaining))
}

func (m *Metrics) ObserveResolver(name string, started time.Time) {
	if m == nil {
		return
	}
	m.ResolverDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.ResolverBatch.Observe(float64(size))
}

func (m *Metrics) ObserveHTTP(route string, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
