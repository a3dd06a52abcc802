package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	if hc.serviceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got %s", hc.serviceName)
	}
	if hc.version != "1.0.0" {
		t.Errorf("Expected version '1.0.0', got %s", hc.version)
	}
	if hc.components == nil {
		t.Error("Components map should be initialized")
	}
}

func TestUpdateComponent(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	hc.UpdateComponent("tables", StatusError, 3, errors.New("bad zone key"))

	hc.mu.RLock()
	c, exists := hc.components["tables"]
	hc.mu.RUnlock()

	if !exists {
		t.Fatal("Component should exist")
	}
	if c.Status != StatusError || c.Latency != 3 || c.LastError != "bad zone key" {
		t.Errorf("component = %+v", c)
	}

	hc.RemoveComponent("tables")
	hc.mu.RLock()
	_, exists = hc.components["tables"]
	hc.mu.RUnlock()
	if exists {
		t.Error("Component should not exist after removal")
	}
}

func TestGetHealthStatus(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	steps := []struct {
		name   string
		status string
		err    error
		want   string
	}{
		{"c1", StatusOK, nil, "healthy"},
		{"c2", StatusDegraded, nil, "degraded"},
		{"c3", StatusError, errors.New("x"), "degraded"},
		{"c4", StatusError, errors.New("y"), "degraded"},
		{"c5", StatusError, errors.New("z"), "unhealthy"}, // 3 of 5 failing
	}

	if got := hc.GetHealth().Status; got != "healthy" {
		t.Errorf("no components: status = %s, want healthy", got)
	}
	for _, s := range steps {
		hc.UpdateComponent(s.name, s.status, 1, s.err)
		if got := hc.GetHealth().Status; got != s.want {
			t.Errorf("after %s: status = %s, want %s", s.name, got, s.want)
		}
	}
}

func TestGetHealthFields(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()
	hc.SetTables("london-2024")
	hc.SetTransport(TransportInfo{Type: "stdio"})

	health := hc.GetHealth()

	if health.Service != "test-service" || health.Version != "1.0.0" {
		t.Errorf("health = %+v", health)
	}
	if health.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}
	if health.Components == nil {
		t.Error("Components should not be nil")
	}
	if health.Metrics["tables"] != "london-2024" {
		t.Errorf("Metrics[tables] = %v, want london-2024", health.Metrics["tables"])
	}
	if health.Transport == nil || health.Transport.Type != "stdio" {
		t.Errorf("Transport = %+v, want stdio", health.Transport)
	}
	for _, key := range []string{"goroutines", "memory_alloc_mb", "version_info"} {
		if _, ok := health.Metrics[key]; !ok {
			t.Errorf("Metrics should contain %s", key)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		failing    int
		wantCode   int
		wantStatus string
	}{
		{"healthy", 0, http.StatusOK, "healthy"},
		{"unhealthy", 2, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker("test-service", "1.0.0")
			defer hc.Shutdown()
			for i := 0; i < tt.failing; i++ {
				hc.UpdateComponent(string(rune('a'+i)), StatusError, 1, errors.New("down"))
			}

			w := httptest.NewRecorder()
			hc.HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got %s", ct)
			}
			var health ServiceHealth
			if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
				t.Fatalf("Failed to decode health response: %v", err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, health.Status)
			}
		})
	}
}

func TestReadinessAndLiveness(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	w := httptest.NewRecorder()
	hc.ReadinessHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	var ready map[string]any
	if err := json.NewDecoder(w.Body).Decode(&ready); err != nil {
		t.Fatalf("Failed to decode readiness response: %v", err)
	}
	if w.Code != http.StatusOK || ready["ready"] != true {
		t.Errorf("readiness = %d %v", w.Code, ready)
	}

	w = httptest.NewRecorder()
	hc.LivenessHandler()(w, httptest.NewRequest("GET", "/live", nil))
	var live map[string]any
	if err := json.NewDecoder(w.Body).Decode(&live); err != nil {
		t.Fatalf("Failed to decode liveness response: %v", err)
	}
	if live["alive"] != true {
		t.Error("Expected alive to be true")
	}
	if _, ok := live["uptime"]; !ok {
		t.Error("Expected uptime field")
	}
}

func waitForComponent(t *testing.T, hc *HealthChecker, name string) ConnStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hc.mu.RLock()
		c, ok := hc.components[name]
		hc.mu.RUnlock()
		if ok {
			return *c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("component %q never reported", name)
	return ConnStatus{}
}

func TestComponentMonitor(t *testing.T) {
	tests := []struct {
		name       string
		check      func() error
		wantStatus string
		wantErr    string
	}{
		{"passing", func() error { return nil }, StatusOK, ""},
		{"failing", func() error { return errors.New("tables: bad zone key") }, StatusError, "tables: bad zone key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker("test-service", "1.0.0")
			defer hc.Shutdown()

			monitor := NewComponentMonitor("tables", hc, tt.check, time.Hour)
			monitor.Start()
			defer monitor.Stop()

			c := waitForComponent(t, hc, "tables")
			if c.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, c.Status)
			}
			if c.LastError != tt.wantErr {
				t.Errorf("Expected error %q, got %q", tt.wantErr, c.LastError)
			}
		})
	}
}
