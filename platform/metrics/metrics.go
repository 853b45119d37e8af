// Package metrics provides Prometheus instrumentation for the engine.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cultivation"

// Metrics holds every collector the service exports. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	batchesProvisioned *prometheus.CounterVec
	bagletsProvisioned *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	operationErrors    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	findingsRecorded   prometheus.Counter
	cacheLookups       *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batchesProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_provisioned_total",
			Help:      "Batches created, by farm.",
		}, []string{"farm"}),
		bagletsProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baglets_provisioned_total",
			Help:      "Baglets created in PLANNED, by farm.",
		}, []string{"farm"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Committed baglet status changes by target status and mode.",
		}, []string{"to", "mode"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed engine operations by operation and error kind.",
		}, []string{"operation", "kind"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency including the store transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		findingsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contamination_findings_total",
			Help:      "Contamination findings recorded.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result (hit or miss).",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.batchesProvisioned,
		m.bagletsProvisioned,
		m.transitions,
		m.operationErrors,
		m.operationDuration,
		m.findingsRecorded,
		m.cacheLookups,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BatchProvisioned counts one batch and its baglets.
func (m *Metrics) BatchProvisioned(farmID string, baglets int) {
	m.batchesProvisioned.WithLabelValues(farmID).Inc()
	m.bagletsProvisioned.WithLabelValues(farmID).Add(float64(baglets))
}

// StatusTransitioned counts count baglets entering status to.
func (m *Metrics) StatusTransitioned(to, mode string, count int) {
	m.transitions.WithLabelValues(to, mode).Add(float64(count))
}

// FindingsRecorded counts contamination findings.
func (m *Metrics) FindingsRecorded(n int) {
	m.findingsRecorded.Add(float64(n))
}

// CacheHit and CacheMiss track catalog cache effectiveness.
func (m *Metrics) CacheHit()  { m.cacheLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) CacheMiss() { m.cacheLookups.WithLabelValues("miss").Inc() }

// ObserveOperation records latency and, when kind is non-empty, a failure.
func (m *Metrics) ObserveOperation(operation string, started time.Time, kind string) {
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if kind != "" {
		m.operationErrors.WithLabelValues(operation, kind).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware records request counts and latency keyed by the matched
// route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
