package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "citymap"
)

var (
	// Pipeline stage metrics
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_stage_runs_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citymap_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0},
		},
		[]string{"stage"},
	)

	// Feature metrics
	FeaturesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_features_extracted_total",
			Help: "Total number of features extracted by kind",
		},
		[]string{"kind"},
	)

	FeaturesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_features_dropped_total",
			Help: "Total number of features dropped during extraction or normalization",
		},
		[]string{"kind", "reason"},
	)

	// Adjacency metrics
	AdjacencyProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citymap_adjacency_progress_percent",
			Help: "Progress of the current adjacency resolution pass (0-100)",
		},
	)

	AdjacencyPairsChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citymap_adjacency_pairs_checked_total",
			Help: "Total number of candidate building pairs checked for adjacency",
		},
	)

	// Coloring metrics
	ColoringAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citymap_coloring_attempts_total",
			Help: "Total number of coloring attempts across all runs",
		},
	)

	ColoringFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citymap_coloring_failures",
			Help: "Number of uncolorable buildings in the best attempt of the last run",
		},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citymap_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"service"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citymap_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citymap_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citymap_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citymap_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version"},
	)
)

// Helper functions for common metric updates
func RecordStageRun(stage string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	StageRunsTotal.WithLabelValues(stage, status).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordFeaturesExtracted(kind string, count int) {
	FeaturesExtracted.WithLabelValues(kind).Add(float64(count))
}

func RecordFeatureDropped(kind, reason string) {
	FeaturesDropped.WithLabelValues(kind, reason).Inc()
}

func UpdateAdjacencyProgress(percent float64) {
	AdjacencyProgress.Set(percent)
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(service string) {
	RateLimitExceeded.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
