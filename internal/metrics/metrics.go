package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Layout simulation metrics
	LayoutTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_ticks_total",
			Help: "Total number of simulation ticks executed",
		},
	)

	LayoutTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_tick_duration_seconds",
			Help:    "Duration of a single simulation tick in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	LayoutTreeDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_quadtree_depth",
			Help: "Depth of the quadtree built by the most recent tick",
		},
	)

	LayoutTreePoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_quadtree_points",
			Help: "Points accepted by the quadtree in the most recent tick",
		},
	)

	LayoutRejectedPoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_rejected_points_total",
			Help: "Total number of positions the quadtree rejected as out of bounds",
		},
	)

	LayoutRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_runs_total",
			Help: "Total number of layout computations",
		},
		[]string{"status"}, // status: success, cached, cancelled, failed
	)

	LayoutRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_run_duration_seconds",
			Help:    "Duration of complete layout computations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	LayoutNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_nodes",
			Help:    "Number of nodes per layout request",
			Buckets: prometheus.ExponentialBuckets(10, 4, 7),
		},
	)

	// API cache metrics
	APICacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Total number of API cache hits",
		},
		[]string{"endpoint"},
	)

	APICacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Total number of API cache misses",
		},
		[]string{"endpoint"},
	)

	APICacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_cache_size_bytes",
			Help: "Current size of API cache in bytes",
		},
		[]string{"endpoint"},
	)

	APICacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_cache_items",
			Help: "Current number of items in API cache",
		},
		[]string{"endpoint"},
	)

	APICacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"endpoint"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"}, // scope: global, ip
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)
)
