package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytstream_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytstream_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ytstream_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Metadata cache metrics
var (
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytstream_metadata_cache_hits_total",
			Help: "Total number of metadata lookups served from the cache",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytstream_metadata_cache_misses_total",
			Help: "Total number of metadata lookups that required a provider fetch",
		},
	)

	CacheFetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytstream_metadata_cache_fetch_errors_total",
			Help: "Total number of failed fetches on cache miss",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ytstream_metadata_cache_entries",
			Help: "Number of entries in the metadata cache, stale ones included",
		},
	)
)

// Metadata provider metrics
var (
	ProviderFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytstream_provider_fetches_total",
			Help: "Total number of metadata provider fetches",
		},
		[]string{"provider", "status"},
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytstream_provider_fetch_duration_seconds",
			Help:    "Metadata provider fetch duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"provider"},
	)
)

// Stream delivery metrics
var (
	StreamSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytstream_stream_sessions_total",
			Help: "Total number of finished stream sessions by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	StreamSessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytstream_stream_session_duration_seconds",
			Help:    "Stream session duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode"},
	)

	StreamBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytstream_stream_bytes_total",
			Help: "Total number of body bytes sent to clients",
		},
		[]string{"mode"},
	)

	StreamSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ytstream_stream_sessions_active",
			Help: "Number of stream sessions currently running",
		},
	)

	FFmpegExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytstream_ffmpeg_exits_total",
			Help: "Total number of ffmpeg process exits by exit code (-1 = killed by signal)",
		},
		[]string{"code"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ytstream_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "provider"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, provider string) {
	AppInfo.WithLabelValues(version, commit, goVersion, provider).Set(1)
}
