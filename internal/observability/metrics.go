// Package observability holds the Prometheus collector and OpenTelemetry
// tracing setup shared by the server, the CLI and the query cache.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	GraphsCreated    prometheus.Counter
	GraphsDeleted    prometheus.Counter
	EntitiesExpanded prometheus.Counter
	QueriesExecuted  *prometheus.CounterVec

	// Repository metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	// Query cache metrics
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	CacheEvictions     *prometheus.CounterVec
	CacheRollbacks     *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	// Messaging metrics
	EventsPublished *prometheus.CounterVec
}

// NewCollector creates the metrics collector with the given namespace. The
// first call wins; later calls return the same collector so registration
// never happens twice.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GraphsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphs_created_total",
			Help:      "Total number of graphs extracted from text",
		}),
		GraphsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphs_deleted_total",
			Help:      "Total number of graphs deleted",
		}),
		EntitiesExpanded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_expanded_total",
			Help:      "Total number of entity expansions",
		}),
		QueriesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_executed_total",
			Help:      "Total number of structured graph queries",
		}, []string{"type"}),
		DBOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Total number of repository operations",
		}, []string{"operation", "driver", "status"}),
		DBDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "driver"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_hits_total",
			Help:      "Reads served from fresh cache entries",
		}, []string{"scope"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_misses_total",
			Help:      "Reads that required a fetch",
		}, []string{"scope"}),
		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_invalidations_total",
			Help:      "Entries marked stale",
		}, []string{"scope"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_evictions_total",
			Help:      "Unobserved entries garbage collected",
		}, []string{"scope"}),
		CacheRollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_rollbacks_total",
			Help:      "Optimistic updates rolled back after a failed mutation",
		}, []string{"mutation"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_cache_fetch_duration_seconds",
			Help:      "Duration of cache fetches including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope", "status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the event bus",
		}, []string{"type", "status"}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.GraphsCreated,
		c.GraphsDeleted,
		c.EntitiesExpanded,
		c.QueriesExecuted,
		c.DBOperations,
		c.DBDuration,
		c.CacheHits,
		c.CacheMisses,
		c.CacheInvalidations,
		c.CacheEvictions,
		c.CacheRollbacks,
		c.FetchDuration,
		c.EventsPublished,
	)

	globalCollector = c
	return c
}

// ResetForTesting resets the global collector for testing purposes.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDB records one repository operation.
func (c *Collector) RecordDB(operation, driver string, duration time.Duration, err error) {
	c.DBOperations.WithLabelValues(operation, driver, statusLabel(err)).Inc()
	c.DBDuration.WithLabelValues(operation, driver).Observe(duration.Seconds())
}

// RecordEvent records one published domain event.
func (c *Collector) RecordEvent(eventType string, err error) {
	c.EventsPublished.WithLabelValues(eventType, statusLabel(err)).Inc()
}

// GraphCreated counts a graph extracted from text.
func (c *Collector) GraphCreated() { c.GraphsCreated.Inc() }

// GraphDeleted counts a deleted graph.
func (c *Collector) GraphDeleted() { c.GraphsDeleted.Inc() }

// EntityExpanded counts an expansion that grew a graph.
func (c *Collector) EntityExpanded() { c.EntitiesExpanded.Inc() }

// QueryExecuted counts a structured query by type.
func (c *Collector) QueryExecuted(queryType string) {
	c.QueriesExecuted.WithLabelValues(queryType).Inc()
}

// The methods below satisfy querycache.Recorder.

// Hit counts a fresh cache read.
func (c *Collector) Hit(scope string) { c.CacheHits.WithLabelValues(scope).Inc() }

// Miss counts a read that fetched.
func (c *Collector) Miss(scope string) { c.CacheMisses.WithLabelValues(scope).Inc() }

// Fetched observes one fetch.
func (c *Collector) Fetched(scope string, duration time.Duration, err error) {
	c.FetchDuration.WithLabelValues(scope, statusLabel(err)).Observe(duration.Seconds())
}

// Invalidated counts entries marked stale.
func (c *Collector) Invalidated(scope string, count int) {
	c.CacheInvalidations.WithLabelValues(scope).Add(float64(count))
}

// Evicted counts a garbage collected entry.
func (c *Collector) Evicted(scope string) { c.CacheEvictions.WithLabelValues(scope).Inc() }

// RolledBack counts a rolled back optimistic update.
func (c *Collector) RolledBack(mutation string) { c.CacheRollbacks.WithLabelValues(mutation).Inc() }

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
