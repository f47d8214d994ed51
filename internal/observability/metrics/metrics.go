// Package metrics provides Prometheus instrumentation for verimeta.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Metadata domain metrics
	resolveTotal     *prometheus.CounterVec
	evictTotal       *prometheus.CounterVec
	cacheLookupTotal *prometheus.CounterVec

	// Upstream source metrics
	sourceFetchTotal    *prometheus.CounterVec
	sourceFetchDuration *prometheus.HistogramVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Metadata resolve counter
	resolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_resolve_total",
			Help: "Total number of metadata resolutions",
		},
		[]string{"status"},
	)

	// Metadata evict counter
	evictTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_evict_total",
			Help: "Total number of cache evictions",
		},
		[]string{"status"},
	)

	// Cache lookup counter
	cacheLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_lookup_total",
			Help: "Total number of metadata cache lookups",
		},
		[]string{"result"},
	)

	// Upstream fetch counter
	sourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_total",
			Help: "Total number of upstream source fetch attempts",
		},
		[]string{"source", "result"},
	)

	// Upstream fetch duration histogram
	sourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Upstream source fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
