// Package metrics exposes Prometheus metrics for filesystem operations,
// cache behavior, and store traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records all cosfs metrics on a dedicated
// registry. A nil *Collector is valid and records nothing, so callers can
// pass one through unconditionally.
type Collector struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	errors        *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchBytes    prometheus.Counter
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosfs",
			Name:      "operations_total",
			Help:      "Filesystem operations dispatched by the kernel.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosfs",
			Name:      "operation_errors_total",
			Help:      "Filesystem operations that returned an error.",
		}, []string{"op"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosfs",
			Name:      "cache_hits_total",
			Help:      "Cache hits per tier.",
		}, []string{"tier"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosfs",
			Name:      "cache_misses_total",
			Help:      "Cache misses per tier.",
		}, []string{"tier"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cosfs",
			Name:      "store_fetch_duration_seconds",
			Help:      "Latency of object store round trips.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"call"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cosfs",
			Name:      "store_fetched_bytes_total",
			Help:      "Object bytes downloaded from the store.",
		}),
	}

	c.registry.MustRegister(
		c.operations,
		c.errors,
		c.cacheHits,
		c.cacheMisses,
		c.fetchDuration,
		c.fetchBytes,
	)
	return c
}

// RecordOp counts one dispatched operation.
func (c *Collector) RecordOp(op string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(op).Inc()
}

// RecordError counts one failed operation.
func (c *Collector) RecordError(op string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(op).Inc()
}

// RecordCacheHit counts a hit in the named tier ("metadata" or "content").
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss counts a miss in the named tier.
func (c *Collector) RecordCacheMiss(tier string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(tier).Inc()
}

// ObserveFetch records the latency of one store round trip ("head", "get",
// or "list") and the bytes it transferred.
func (c *Collector) ObserveFetch(call string, d time.Duration, bytes int) {
	if c == nil {
		return
	}
	c.fetchDuration.WithLabelValues(call).Observe(d.Seconds())
	if bytes > 0 {
		c.fetchBytes.Add(float64(bytes))
	}
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
