package restkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle
// and the reliability layers. Safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	dedupHits *prometheus.CounterVec

	authRefreshTotal *prometheus.CounterVec

	rateLimiterTokens   *prometheus.GaugeVec
	circuitBreakerState *prometheus.GaugeVec

	queueDepth    *prometheus.GaugeVec
	queueInFlight *prometheus.GaugeVec
	queueRejected *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restkit_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restkit_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_errors_total",
				Help: "Total number of classified errors",
			},
			[]string{"type", "method", "endpoint"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restkit_cache_size",
				Help: "Current number of cached entries",
			},
			[]string{"name"},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_deduplication_hits_total",
				Help: "Total number of requests coalesced into an in-flight dispatch",
			},
			[]string{"method", "endpoint"},
		),
		authRefreshTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_auth_refresh_total",
				Help: "Total number of token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restkit_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restkit_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		queueDepth: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restkit_queue_depth",
				Help: "Number of requests waiting for admission",
			},
			[]string{"host"},
		),
		queueInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restkit_queue_in_flight",
				Help: "Number of admitted requests currently executing",
			},
			[]string{"host"},
		),
		queueRejected: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "restkit_queue_rejected_total",
				Help: "Total number of requests rejected by the queue",
			},
			[]string{"host", "reason"},
		),
	}
}

// RecordRequestStart marks a request entering the pipeline.
func (m *MetricsCollector) RecordRequestStart(method, endpoint string) {
	m.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd marks a request leaving the pipeline.
func (m *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	m.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRequest records one settled request.
func (m *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, code, endpoint).Inc()
	m.requestDuration.WithLabelValues(method, code, endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (m *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	m.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordError records one classified error.
func (m *MetricsCollector) RecordError(errType, method, endpoint string) {
	m.errorsTotal.WithLabelValues(errType, method, endpoint).Inc()
}

// RecordCacheHit records a cache hit.
func (m *MetricsCollector) RecordCacheHit(method, endpoint string) {
	m.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	m.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize records the current entry count of a named cache.
func (m *MetricsCollector) RecordCacheSize(name string, size int) {
	m.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordDeduplicationHit records a coalesced request.
func (m *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	m.dedupHits.WithLabelValues(method, endpoint).Inc()
}

// RecordAuthRefresh records a token refresh outcome ("success"/"failure").
func (m *MetricsCollector) RecordAuthRefresh(outcome string) {
	m.authRefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimiterTokens records the available tokens of a named limiter.
func (m *MetricsCollector) RecordRateLimiterTokens(name string, tokens int) {
	m.rateLimiterTokens.WithLabelValues(name).Set(float64(tokens))
}

// RecordCircuitBreakerState records the state of a named breaker.
func (m *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	m.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordQueueDepth records the waiting count for a host queue.
func (m *MetricsCollector) RecordQueueDepth(host string, depth int) {
	m.queueDepth.WithLabelValues(host).Set(float64(depth))
}

// RecordQueueInFlight records the executing count for a host queue.
func (m *MetricsCollector) RecordQueueInFlight(host string, inFlight int) {
	m.queueInFlight.WithLabelValues(host).Set(float64(inFlight))
}

// RecordQueueRejected records a queue rejection ("full"/"cleared").
func (m *MetricsCollector) RecordQueueRejected(host, reason string) {
	m.queueRejected.WithLabelValues(host, reason).Inc()
}
