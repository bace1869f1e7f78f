// Package metrics provides Prometheus metrics for the Sonar event scoring
// service.
package metrics

import (
	"runtime"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states as exported by the catalog_breaker_state gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// scoreBuckets cover the 0-100 score range in steps of ten.
var scoreBuckets = prometheus.LinearBuckets(10, 10, 10) //nolint:gochecknoglobals // fixed bucket layout

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	eventsScored    *prometheus.CounterVec
	scoreValue      *prometheus.HistogramVec
	factorsSkipped  *prometheus.CounterVec
	scoringErrors   *prometheus.CounterVec
	scoringLatency  prometheus.Histogram
	rankingJobs     prometheus.Counter
	rankingDupes    prometheus.Counter
	rankingTasks    prometheus.Counter
	rateLimitedReqs prometheus.Counter

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Rank store
	rankStoreUsers         prometheus.Gauge
	rankStoreEntries       prometheus.Gauge
	rankStoreUpdateLatency prometheus.Histogram
	rankStoreQueryLatency  prometheus.Histogram

	// Artist catalog
	catalogLookups       *prometheus.CounterVec
	catalogLookupLatency prometheus.Histogram
	catalogBreakerState  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sonar",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsScored = m.counterVec("events_scored_total", "Events scored, by classification", "classification")
	m.scoreValue = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "score_value",
		Help:    "Distribution of final scores, by music flag",
		Buckets: scoreBuckets,
	}, []string{"music"})
	m.factorsSkipped = m.counterVec("factors_skipped_total", "Score factors skipped for missing data", "factor")
	m.scoringErrors = m.counterVec("scoring_errors_total", "Scoring failures, by reason", "reason")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Latency of a single score computation in milliseconds")
	m.rankingJobs = m.counter("ranking_jobs_total", "Ranking jobs accepted")
	m.rankingDupes = m.counter("ranking_jobs_duplicate_total", "Ranking jobs rejected as duplicates")
	m.rankingTasks = m.counter("ranking_tasks_total", "Scoring tasks produced by ranking jobs")
	m.rateLimitedReqs = m.counter("rate_limited_requests_total", "Requests rejected by the rate limiter")

	m.queueSize = m.gauge("queue_size", "Tasks currently waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size / capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Tasks enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Tasks dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue failures")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds")

	m.workerCount = m.gauge("worker_count", "Running scoring workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-task processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Tasks that failed in a worker")

	m.rankStoreUsers = m.gauge("rank_store_users", "Users with at least one ranked event")
	m.rankStoreEntries = m.gauge("rank_store_entries", "Ranked (user, event) entries")
	m.rankStoreUpdateLatency = m.histogram("rank_store_update_latency_milliseconds", "Rank store upsert latency in milliseconds")
	m.rankStoreQueryLatency = m.histogram("rank_store_query_latency_milliseconds", "Rank store query latency in milliseconds")

	m.catalogLookups = m.counterVec("catalog_lookups_total", "Artist catalog lookups, by result", "result")
	m.catalogLookupLatency = m.histogram("catalog_lookup_latency_milliseconds", "Artist catalog lookup latency in milliseconds")
	m.catalogBreakerState = m.gauge("catalog_breaker_state", "Catalog circuit breaker state (0 closed, 1 half-open, 2 open)")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEventScored counts one scored event and observes its score.
func RecordEventScored(classification string, music bool, score int) {
	globalManager.eventsScored.WithLabelValues(classification).Inc()
	globalManager.scoreValue.WithLabelValues(strconv.FormatBool(music)).Observe(float64(score))
}

// RecordFactorSkipped counts a factor that had no data to judge.
func RecordFactorSkipped(factor string) {
	globalManager.factorsSkipped.WithLabelValues(factor).Inc()
}

// RecordScoringError counts a scoring failure.
func RecordScoringError(reason string) {
	globalManager.scoringErrors.WithLabelValues(reason).Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordRankingJob counts an accepted ranking job and the tasks it fanned out.
func RecordRankingJob(tasks int) {
	globalManager.rankingJobs.Inc()
	globalManager.rankingTasks.Add(float64(tasks))
}

// RecordRankingDuplicate counts a ranking job dropped as a duplicate.
func RecordRankingDuplicate() {
	globalManager.rankingDupes.Inc()
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited() {
	globalManager.rateLimitedReqs.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-task worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateRankStoreSize sets the number of users and ranked entries.
func UpdateRankStoreSize(users, entries int) {
	globalManager.rankStoreUsers.Set(float64(users))
	globalManager.rankStoreEntries.Set(float64(entries))
}

// RecordRankStoreUpdateLatency records rank store upsert latency.
func RecordRankStoreUpdateLatency(latencyMs float64) {
	globalManager.rankStoreUpdateLatency.Observe(latencyMs)
}

// RecordRankStoreQueryLatency records rank store query latency.
func RecordRankStoreQueryLatency(latencyMs float64) {
	globalManager.rankStoreQueryLatency.Observe(latencyMs)
}

// RecordCatalogLookup counts a catalog lookup with result hit, miss or error.
func RecordCatalogLookup(result string, latencyMs float64) {
	globalManager.catalogLookups.WithLabelValues(result).Inc()
	globalManager.catalogLookupLatency.Observe(latencyMs)
}

// UpdateCatalogBreakerState publishes the catalog circuit breaker state.
func UpdateCatalogBreakerState(state int) {
	globalManager.catalogBreakerState.Set(float64(state))
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemStats samples heap usage and goroutine count.
func UpdateSystemStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the registry the global collectors live in.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
