// Package metrics provides Prometheus metrics for the balendip service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Entity store
	storeCalls   *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	storeRetries *prometheus.CounterVec

	// Cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheStaleServes   *prometheus.CounterVec
	cacheInvalidations prometheus.Counter
	cacheEntries       prometheus.Gauge

	// Refresh queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueueErrors      *prometheus.CounterVec
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Domain
	onboardingTransitions  *prometheus.CounterVec
	onboardingPersistFails prometheus.Counter
	aggregationWarnings    prometheus.Counter
	exportsGenerated       *prometheus.CounterVec

	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "balendip",
		subsystem:        "api",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.storeCalls = m.counterVec("store_calls_total",
		"Entity store calls by entity kind, operation and outcome", "kind", "op", "outcome")
	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Entity store call latency in milliseconds, retries included", "kind", "op")
	m.storeRetries = m.counterVec("store_retries_total",
		"Entity store retries after transient failures", "kind", "op")

	m.cacheHits = m.counterVec("cache_hits_total", "Cache lookups served fresh", "class")
	m.cacheMisses = m.counterVec("cache_misses_total", "Cache lookups that fetched synchronously", "class")
	m.cacheStaleServes = m.counterVec("cache_stale_serves_total",
		"Stale cache entries served while a background refresh ran", "class")
	m.cacheInvalidations = m.counter("cache_invalidations_total", "Cache entries removed by invalidation")
	m.cacheEntries = m.gauge("cache_entries", "Current number of cache entries")

	m.queueSize = m.gauge("refresh_queue_size", "Current number of pending background refresh jobs")
	m.queueCapacity = m.gauge("refresh_queue_capacity", "Capacity of the background refresh queue")
	m.queueEnqueueErrors = m.counterVec("refresh_queue_enqueue_errors_total",
		"Refresh jobs rejected by the queue", "reason")
	m.workerCount = m.gauge("refresh_worker_count", "Number of background refresh workers")
	m.workerProcessingLatency = m.histogram("refresh_worker_latency_milliseconds",
		"Background refresh job latency in milliseconds")
	m.workerErrors = m.counter("refresh_worker_errors_total", "Background refresh jobs that failed")

	m.onboardingTransitions = m.counterVec("onboarding_transitions_total",
		"Onboarding state transitions by target step", "step")
	m.onboardingPersistFails = m.counter("onboarding_persist_failures_total",
		"Onboarding completions whose sphere write failed")
	m.aggregationWarnings = m.counter("aggregation_integrity_warnings_total",
		"Events skipped by category tallies because of unrecognized values")
	m.exportsGenerated = m.counterVec("exports_total", "Generated export documents by format", "format")

	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and error type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds")
}

func enabled() bool { return globalManager != nil && globalManager.enabled }

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if enabled() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if enabled() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if enabled() {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// Entity store.

// RecordStoreCall counts one logical store call and its latency.
func RecordStoreCall(kind, op, outcome string, latencyMs float64) {
	if enabled() {
		globalManager.storeCalls.WithLabelValues(kind, op, outcome).Inc()
		globalManager.storeLatency.WithLabelValues(kind, op).Observe(latencyMs)
	}
}

// RecordStoreRetry counts a retry of a store call.
func RecordStoreRetry(kind, op string) {
	if enabled() {
		globalManager.storeRetries.WithLabelValues(kind, op).Inc()
	}
}

// Cache.

// RecordCacheHit counts a fresh hit for a key class.
func RecordCacheHit(class string) {
	if enabled() {
		globalManager.cacheHits.WithLabelValues(class).Inc()
	}
}

// RecordCacheMiss counts a synchronous fetch for a key class.
func RecordCacheMiss(class string) {
	if enabled() {
		globalManager.cacheMisses.WithLabelValues(class).Inc()
	}
}

// RecordCacheStaleServe counts a stale-while-revalidate serve.
func RecordCacheStaleServe(class string) {
	if enabled() {
		globalManager.cacheStaleServes.WithLabelValues(class).Inc()
	}
}

// RecordCacheInvalidations adds n invalidated entries.
func RecordCacheInvalidations(n int) {
	if enabled() && n > 0 {
		globalManager.cacheInvalidations.Add(float64(n))
	}
}

// UpdateCacheEntries sets the current cache size.
func UpdateCacheEntries(n int) {
	if enabled() {
		globalManager.cacheEntries.Set(float64(n))
	}
}

// Refresh queue and workers.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if enabled() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if enabled() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError(reason string) {
	if enabled() {
		globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
	}
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	if enabled() {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if enabled() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	if enabled() {
		globalManager.workerErrors.Inc()
	}
}

// Domain.

// RecordOnboardingTransition counts a transition into step.
func RecordOnboardingTransition(step string) {
	if enabled() {
		globalManager.onboardingTransitions.WithLabelValues(step).Inc()
	}
}

// RecordOnboardingPersistFailure counts a failed sphere write on completion.
func RecordOnboardingPersistFailure() {
	if enabled() {
		globalManager.onboardingPersistFails.Inc()
	}
}

// RecordAggregationWarnings adds n integrity warnings.
func RecordAggregationWarnings(n int) {
	if enabled() && n > 0 {
		globalManager.aggregationWarnings.Add(float64(n))
	}
}

// RecordExport counts a generated export.
func RecordExport(format string) {
	if enabled() {
		globalManager.exportsGenerated.WithLabelValues(format).Inc()
	}
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if enabled() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if enabled() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if enabled() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(on bool) {
	if globalManager != nil {
		globalManager.enabled = on
	}
}
