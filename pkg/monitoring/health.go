package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/journeymcp/pkg/version"
)

// Component states
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// HealthChecker manages service health monitoring
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu         sync.RWMutex
	components map[string]*ConnStatus
	tables     string
	transport  *TransportInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		components:  make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	go hc.collectSystemMetrics()

	return hc
}

// SetTables records the name of the loaded table set
func (h *HealthChecker) SetTables(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tables = name
}

// SetTransport records the active transport
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// UpdateComponent updates the status of a component
func (h *HealthChecker) UpdateComponent(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	h.components[name] = &ConnStatus{
		Status:    status,
		Latency:   latencyMs,
		LastError: errStr,
	}
}

// RemoveComponent removes a component from monitoring
func (h *HealthChecker) RemoveComponent(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.components, name)
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	degradedCount := 0
	errorCount := 0
	for _, c := range h.components {
		switch c.Status {
		case StatusError:
			errorCount++
		case StatusDegraded:
			degradedCount++
		}
	}

	// healthy -> degraded -> unhealthy
	status := "healthy"
	if errorCount > 0 {
		if errorCount > len(h.components)/2 {
			status = "unhealthy"
		} else {
			status = "degraded"
		}
	} else if degradedCount > 0 {
		status = "degraded"
	}

	components := make(map[string]ConnStatus, len(h.components))
	for k, v := range h.components {
		components[k] = *v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)
	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Components:    components,
		Transport:     h.transport,
		Metrics: map[string]any{
			"goroutines":          runtime.NumGoroutine(),
			"memory_alloc_mb":     m.Alloc / 1024 / 1024,
			"gc_runs":             m.NumGC,
			"tables":              h.tables,
			"version_info":        version.Info(),
			"error_components":    errorCount,
			"degraded_components": degradedCount,
		},
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		switch health.Status {
		case "healthy", "degraded":
			w.WriteHeader(http.StatusOK)
		case "unhealthy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode health response: %v", err), http.StatusInternalServerError)
		}
	}
}

// ReadinessHandler returns a simple readiness check
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		response := map[string]any{
			"ready":  health.Status != "unhealthy",
			"status": health.Status,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode readiness response: %v", err), http.StatusInternalServerError)
		}
	}
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode liveness response: %v", err), http.StatusInternalServerError)
		}
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	h.updateSystemMetrics()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))
	GCRuns.Set(float64(m.NumGC))

	h.mu.RLock()
	tables := h.tables
	h.mu.RUnlock()

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
		tables,
	).Set(1)
}

// Shutdown stops background metric collection
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// ComponentMonitor periodically runs a check and reports it to a
// HealthChecker. A failing check marks the component as error.
type ComponentMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     func() error
	interval      time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewComponentMonitor creates a new component monitor
func NewComponentMonitor(name string, hc *HealthChecker, checkFunc func() error, interval time.Duration) *ComponentMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ComponentMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins monitoring
func (cm *ComponentMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring
func (cm *ComponentMonitor) Stop() {
	cm.cancel()
}

func (cm *ComponentMonitor) monitor() {
	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ComponentMonitor) performCheck() {
	start := time.Now()
	err := cm.checkFunc()
	latency := time.Since(start).Milliseconds()

	status := StatusOK
	if err != nil {
		status = StatusError
		RecordError(cm.name, "check_failed")
	}

	cm.healthChecker.UpdateComponent(cm.name, status, latency, err)
}
