// Package metrics provides Prometheus metrics for the aidfeed aggregation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default latency buckets in milliseconds.
var defaultLatencyBuckets = []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only defaults

// Manager manages all Prometheus metrics for the aidfeed service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Source adapter metrics
	sourceFetches       *prometheus.CounterVec
	sourceErrors        *prometheus.CounterVec
	sourceFetchLatency  *prometheus.HistogramVec
	sourceListingsTotal *prometheus.GaugeVec

	// Aggregation cycle metrics
	cycleDuration   prometheus.Histogram
	cyclesTotal     *prometheus.CounterVec
	mergedListings  prometheus.Gauge
	mergeConflicts  *prometheus.CounterVec
	lastCycleUnix   prometheus.Gauge
	totalFailures   prometheus.Counter
	staleFallbacks  prometheus.Counter
	listingsByLevel *prometheus.GaugeVec

	// Cache metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheEntries   prometheus.Gauge
	cacheErrors    *prometheus.CounterVec

	// Broadcast metrics
	eventsPublished    *prometheus.CounterVec
	subscribers        prometheus.Gauge
	subscribersDropped *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	streamSessions      *prometheus.HistogramVec
	activeStreams       *prometheus.GaugeVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "aidfeed",
		subsystem:        "aggregator",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)
	latencyBuckets := m.histogramBuckets

	m.sourceFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("source_fetches_total"),
		Help: "Total number of source adapter fetches by source and mode",
	}, []string{"source", "mode"})

	m.sourceErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("source_errors_total"),
		Help: "Total number of failed source adapter fetches by source and reason",
	}, []string{"source", "reason"})

	m.sourceFetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("source_fetch_duration_milliseconds"),
		Help:    "Source adapter fetch latency in milliseconds",
		Buckets: latencyBuckets,
	}, []string{"source"})

	m.sourceListingsTotal = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("source_listings"),
		Help: "Listings contributed by each source in the last cycle",
	}, []string{"source"})

	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("cycle_duration_milliseconds"),
		Help:    "Duration of a full fetch-merge-cache cycle in milliseconds",
		Buckets: latencyBuckets,
	})

	m.cyclesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("cycles_total"),
		Help: "Aggregation cycles by trigger (scheduled, on_demand, forced)",
	}, []string{"trigger"})

	m.mergedListings = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("merged_listings"),
		Help: "Number of listings in the last merged feed",
	})

	m.mergeConflicts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("merge_conflicts_total"),
		Help: "Field conflicts resolved by the merge policy",
	}, []string{"field"})

	m.lastCycleUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("last_cycle_timestamp_seconds"),
		Help: "Unix time of the last completed aggregation cycle",
	})

	m.totalFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("total_failures_total"),
		Help: "Cycles in which every source adapter failed",
	})

	m.staleFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("stale_fallbacks_total"),
		Help: "Requests answered from a stale cache entry after a total failure",
	})

	m.listingsByLevel = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("listings_by_priority"),
		Help: "Listings in the last merged feed by priority",
	}, []string{"priority"})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", ConstLabels: labels,
		Name: m.name("hits_total"),
		Help: "Cache lookups answered within TTL",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", ConstLabels: labels,
		Name: m.name("misses_total"),
		Help: "Cache lookups that missed or found an expired entry",
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", ConstLabels: labels,
		Name: m.name("evictions_total"),
		Help: "Cache entries evicted by retention or size bound",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "cache", ConstLabels: labels,
		Name: m.name("entries"),
		Help: "Current number of cache entries",
	})

	m.cacheErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "cache", ConstLabels: labels,
		Name: m.name("errors_total"),
		Help: "Cache backend errors by operation",
	}, []string{"op"})

	m.eventsPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "broadcast", ConstLabels: labels,
		Name: m.name("events_published_total"),
		Help: "Change events published by kind",
	}, []string{"kind"})

	m.subscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "broadcast", ConstLabels: labels,
		Name: m.name("subscribers"),
		Help: "Currently registered subscribers",
	})

	m.subscribersDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "broadcast", ConstLabels: labels,
		Name: m.name("subscribers_dropped_total"),
		Help: "Subscribers removed after a failed delivery by reason",
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name: m.name("requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name:    m.name("request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name: m.name("errors_total"),
		Help: "HTTP errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.streamSessions = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name:    m.name("stream_session_seconds"),
		Help:    "Lifetime of SSE and WebSocket sessions in seconds",
		Buckets: []float64{1, 10, 60, 300, 1800, 3600, 14400},
	}, []string{"endpoint"})

	m.activeStreams = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name: m.name("active_streams"),
		Help: "Open SSE and WebSocket sessions by endpoint",
	}, []string{"endpoint"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: labels,
		Name: m.name("memory_bytes"),
		Help: "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: labels,
		Name: m.name("goroutines"),
		Help: "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: labels,
		Name: m.name("gc_pause_milliseconds"),
		Help: "Average GC pause in milliseconds",
	})
}

// Source adapter metrics.

// RecordSourceFetch counts one adapter fetch and its latency.
func RecordSourceFetch(source, mode string, latency time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.sourceFetches.WithLabelValues(source, mode).Inc()
	globalManager.sourceFetchLatency.WithLabelValues(source).Observe(float64(latency.Milliseconds()))
}

// RecordSourceError counts a failed adapter fetch.
func RecordSourceError(source, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.sourceErrors.WithLabelValues(source, reason).Inc()
}

// UpdateSourceListings sets how many listings a source contributed.
func UpdateSourceListings(source string, count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sourceListingsTotal.WithLabelValues(source).Set(float64(count))
}

// Aggregation metrics.

// RecordCycle records a completed aggregation cycle.
func RecordCycle(trigger string, duration time.Duration, merged int) {
	if !globalManager.enabled {
		return
	}
	globalManager.cyclesTotal.WithLabelValues(trigger).Inc()
	globalManager.cycleDuration.Observe(float64(duration.Milliseconds()))
	globalManager.mergedListings.Set(float64(merged))
	globalManager.lastCycleUnix.Set(float64(time.Now().Unix()))
}

// RecordMergeConflict counts a conflict resolved on field.
func RecordMergeConflict(field string) {
	if !globalManager.enabled {
		return
	}
	globalManager.mergeConflicts.WithLabelValues(field).Inc()
}

// RecordTotalFailure counts a cycle in which every source failed.
func RecordTotalFailure() {
	if !globalManager.enabled {
		return
	}
	globalManager.totalFailures.Inc()
}

// RecordStaleFallback counts a stale cache serve.
func RecordStaleFallback() {
	if !globalManager.enabled {
		return
	}
	globalManager.staleFallbacks.Inc()
}

// UpdateListingsByPriority sets the per-priority listing gauge.
func UpdateListingsByPriority(priority string, count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.listingsByLevel.WithLabelValues(priority).Set(float64(count))
}

// Cache metrics.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheMisses.Inc()
}

// RecordCacheEviction increments the eviction counter.
func RecordCacheEviction() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheEvictions.Inc()
}

// UpdateCacheEntries sets the current cache entry count.
func UpdateCacheEntries(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheEntries.Set(float64(count))
}

// RecordCacheError counts a backend error for op.
func RecordCacheError(op string) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheErrors.WithLabelValues(op).Inc()
}

// Broadcast metrics.

// RecordEventPublished counts a published change event.
func RecordEventPublished(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsPublished.WithLabelValues(kind).Inc()
}

// UpdateSubscribers sets the subscriber gauge.
func UpdateSubscribers(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.subscribers.Set(float64(count))
}

// RecordSubscriberDropped counts a subscriber removed after failed delivery.
func RecordSubscriberDropped(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.subscribersDropped.WithLabelValues(reason).Inc()
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// StreamOpened marks a long-lived session as open.
func StreamOpened(endpoint string) {
	if !globalManager.enabled {
		return
	}
	globalManager.activeStreams.WithLabelValues(endpoint).Inc()
}

// StreamClosed marks a session as closed and records how long it lasted.
func StreamClosed(endpoint string, lifetime time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.activeStreams.WithLabelValues(endpoint).Dec()
	globalManager.streamSessions.WithLabelValues(endpoint).Observe(lifetime.Seconds())
}

// System metrics.

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime sets the average GC pause gauge.
func RecordSystemGCPauseTime(ms float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGCPauseTime.Set(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
