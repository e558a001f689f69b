package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Read-through cache metrics
	ReadCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_requests_total",
			Help: "Total number of read-through cache lookups",
		},
		[]string{"cache", "result"}, // result: hit, miss, join
	)

	ReadCacheProducerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_producer_calls_total",
			Help: "Total number of producer invocations",
		},
		[]string{"cache", "status"}, // status: success, failure
	)

	ReadCacheProducerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readcache_producer_duration_seconds",
			Help:    "Duration of producer invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache"},
	)

	ReadCacheDiscardedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_discarded_results_total",
			Help: "Producer results dropped because a newer call or invalidation superseded them",
		},
		[]string{"cache"},
	)

	ReadCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_invalidations_total",
			Help: "Total number of invalidations",
		},
		[]string{"cache", "scope"}, // scope: key, all
	)

	ReadCacheSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "readcache_subscriptions_active",
			Help: "Number of active key subscriptions",
		},
		[]string{"cache"},
	)

	// Entry store metrics (ristretto-backed stores report here)
	StoreItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "readcache_store_items",
			Help: "Approximate number of entries held by the cache store",
		},
		[]string{"cache"},
	)

	StoreEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_store_evictions_total",
			Help: "Total number of entries evicted by a bounded store",
		},
		[]string{"cache"},
	)

	// Remote story API client metrics
	StoryAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyapi_http_requests_total",
			Help: "Total number of HTTP requests made to the story API",
		},
		[]string{"status"}, // status: success, retry, error
	)

	StoryAPIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storyapi_http_retries_total",
			Help: "Total number of HTTP request retries",
		},
	)

	StoryAPIRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyapi_retry_after_wait_seconds",
			Help:    "Time spent honoring Retry-After headers",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	StoryAPIRateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storyapi_rate_limit_waits_total",
			Help: "Total number of times the client waited for its rate limiter",
		},
	)

	StoryAPIOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyapi_operation_duration_seconds",
			Help:    "Duration of story API operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	StoryAPIUnauthorized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storyapi_unauthorized_total",
			Help: "Total number of 401 responses from the story API",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of times circuit breaker opened",
		},
		[]string{"name"},
	)

	// Gateway metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of gateway requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of gateway requests",
		},
		[]string{"route", "status"},
	)

	GatewayRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limited_total",
			Help: "Requests rejected by the gateway rate limiter",
		},
		[]string{"scope"}, // scope: global, ip
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)
)
