package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "journeymcp"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymcp_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journeymcp_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"tool"},
	)

	// Calculator metrics
	CalculationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymcp_calculation_errors_total",
			Help: "Total number of failed calculations by calculator and error kind",
		},
		[]string{"calculator", "kind"},
	)

	ZoneFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymcp_zone_fallbacks_total",
			Help: "Total number of results priced with the fallback zone for an unknown station",
		},
	)

	PlannedCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journeymcp_planned_candidates",
			Help:    "Number of candidates evaluated per plan",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymcp_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymcp_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymcp_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journeymcp_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journeymcp_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymcp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journeymcp_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date", "tables"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymcp_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymcp_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymcp_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type     string `json:"type"`                // "sse" or "stdio"
	HTTPAddr string `json:"http_addr,omitempty"` // HTTP address if enabled
}

// ServiceHealth is the body of the /health endpoint
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration         `json:"uptime"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time,omitempty"`
	Components    map[string]ConnStatus `json:"components"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
	Transport     *TransportInfo        `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of one component
type ConnStatus struct {
	Status    string `json:"status"` // "ok", "degraded", "error"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// RecordMCPRequest counts one tool call and its duration
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	MCPRequestsTotal.WithLabelValues(tool, status).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCalculationError counts a failed calculation. kind comes from core.Kind.
func RecordCalculationError(calculator, kind string) {
	CalculationErrors.WithLabelValues(calculator, kind).Inc()
}

func RecordZoneFallback() {
	ZoneFallbacks.Inc()
}

func RecordPlan(candidates int) {
	PlannedCandidates.Observe(float64(candidates))
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

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
