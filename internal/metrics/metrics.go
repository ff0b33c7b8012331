package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audioserve_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audioserve_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audioserve_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	RequestsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audioserve_requests_rejected_total",
			Help: "Requests rejected by admission control because the worker pool was saturated",
		},
	)
)

// Worker pool metrics
var (
	PoolQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audioserve_pool_queue_depth",
			Help: "Jobs waiting in the worker pool queue",
		},
	)
)

// Transcoding metrics
var (
	TranscodingsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audioserve_transcodings_active",
			Help: "Transcoding operations currently holding a slot",
		},
	)

	TranscodingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audioserve_transcodings_total",
			Help: "Total transcoding operations by outcome",
		},
		[]string{"status"}, // "completed", "failed", "canceled", "rejected"
	)

	TranscodingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audioserve_transcoding_duration_seconds",
			Help:    "Duration of transcoding operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 3600},
		},
	)
)

// Icon cache metrics
var (
	IconCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audioserve_icon_cache_hits_total",
			Help: "Icon requests served from the thumbnail cache",
		},
	)

	IconCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audioserve_icon_cache_misses_total",
			Help: "Icon requests that required scaling the source image",
		},
	)

	IconScaleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audioserve_icon_scale_duration_seconds",
			Help:    "Time spent decoding, scaling and encoding cover images",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Collection store metrics
var (
	StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audioserve_store_queries_total",
			Help: "Collection store queries by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	StoreFoldersIndexed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audioserve_store_folders_indexed",
			Help: "Folder keys currently indexed per collection",
		},
		[]string{"collection"},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audioserve_auth_attempts_total",
			Help: "Authentication attempts by scheme and outcome",
		},
		[]string{"scheme", "status"}, // scheme: "token", "session", "secret"
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audioserve_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric.
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
