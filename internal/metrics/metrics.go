package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_pipeline_runs_total",
			Help: "Total number of processing pipeline runs by terminal status",
		},
		[]string{"kind", "status"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_pipeline_run_duration_seconds",
			Help:    "Processing pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	PipelineActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_pipeline_active_runs",
			Help: "Number of pipeline runs currently in flight",
		},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_pipeline_queue_depth",
			Help: "Number of dispatched records waiting for a worker",
		},
	)

	DuplicateUploadsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_duplicate_uploads_detected_total",
			Help: "Total number of uploads whose checksum matched an existing record",
		},
	)
)

// Derivative metrics
var (
	DerivativeGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_derivative_generations_total",
			Help: "Total number of derivative generation attempts by variant and status",
		},
		[]string{"variant", "status"},
	)

	DerivativeGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_derivative_generation_duration_seconds",
			Help:    "Derivative generation duration in seconds by variant",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"variant"},
	)
)

// Policy metrics
var (
	UploadValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_upload_validation_failures_total",
			Help: "Total number of rejected uploads by reason",
		},
		[]string{"reason"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_rate_limit_rejections_total",
			Help: "Total number of requests denied by the fixed-window rate limiter",
		},
		[]string{"action"},
	)
)

// Approval metrics
var (
	ApprovalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_approval_decisions_total",
			Help: "Total number of review decisions by outcome",
		},
		[]string{"decision"},
	)

	ApprovalPropagationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_approval_propagation_failures_total",
			Help: "Total number of decisions whose record update could not be applied",
		},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"},
	)
)
