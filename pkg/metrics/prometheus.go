// Package metrics provides Prometheus metrics for the oraculus competition
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the oraculus service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core business metrics
	submissionsAccepted prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	duplicatesFlagged   prometheus.Counter
	badgesAwarded       *prometheus.CounterVec
	selections          prometheus.Counter

	// Latency metrics
	scoringLatency          prometheus.Histogram
	storeAppendLatency      prometheus.Histogram
	leaderboardQueryLatency prometheus.Histogram

	// State gauges
	totalUsers       prometheus.Gauge
	totalSubmissions prometheus.Gauge
	fakeEntries      prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// customRegistry isolates service metrics from the default registry.
var customRegistry = prometheus.NewRegistry()

var globalManager *Manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "oraculus",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissionsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_accepted_total",
		Help:      "Total submissions scored and appended to the store",
	})
	m.submissionsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_rejected_total",
		Help:      "Total rejected submissions by rejection kind",
	}, []string{"kind"})
	m.duplicatesFlagged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicates_flagged_total",
		Help:      "Total accepted submissions flagged as duplicates",
	})
	m.badgesAwarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "badges_awarded_total",
		Help:      "Total badges awarded by kind",
	}, []string{"kind"})
	m.selections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "selections_total",
		Help:      "Total successful select operations",
	})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_ms",
		Help:      "Confusion-matrix scoring latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeAppendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_append_latency_ms",
		Help:      "Submission store append latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.leaderboardQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_query_latency_ms",
		Help:      "Leaderboard recomputation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.totalUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "users_total",
		Help:      "Distinct users with at least one submission",
	})
	m.totalSubmissions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_total",
		Help:      "Submissions recorded in the store",
	})
	m.fakeEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fake_entries_total",
		Help:      "Teacher-authored fake leaderboard entries",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method, and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_bytes",
		Help:      "Allocated heap bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current goroutine count",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_ms",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers recording through the global manager.

// RecordSubmissionAccepted increments the accepted-submission counter.
func RecordSubmissionAccepted() {
	globalManager.submissionsAccepted.Inc()
}

// RecordSubmissionRejected increments the rejection counter for kind
// (malformed_input, invalid_identifier, deadline_passed, ...).
func RecordSubmissionRejected(kind string) {
	globalManager.submissionsRejected.WithLabelValues(kind).Inc()
}

// RecordDuplicateFlagged increments the duplicate-flag counter.
func RecordDuplicateFlagged() {
	globalManager.duplicatesFlagged.Inc()
}

// RecordBadgeAwarded increments the badge counter for kind.
func RecordBadgeAwarded(kind string) {
	globalManager.badgesAwarded.WithLabelValues(kind).Inc()
}

// RecordSelection increments the selection counter.
func RecordSelection() {
	globalManager.selections.Inc()
}

// RecordScoringLatency records one scoring duration.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordStoreAppendLatency records one store append duration.
func RecordStoreAppendLatency(latencyMs float64) {
	globalManager.storeAppendLatency.Observe(latencyMs)
}

// RecordLeaderboardQueryLatency records one leaderboard recomputation.
func RecordLeaderboardQueryLatency(latencyMs float64) {
	globalManager.leaderboardQueryLatency.Observe(latencyMs)
}

// UpdateTotalUsers sets the distinct-user gauge.
func UpdateTotalUsers(count int) {
	globalManager.totalUsers.Set(float64(count))
}

// UpdateTotalSubmissions sets the stored-submission gauge.
func UpdateTotalSubmissions(count int) {
	globalManager.totalSubmissions.Set(float64(count))
}

// UpdateFakeEntries sets the fake-entry gauge.
func UpdateFakeEntries(count int) {
	globalManager.fakeEntries.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the allocated-heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the global manager, for serving
// on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
