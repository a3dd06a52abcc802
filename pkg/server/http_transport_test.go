package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/journeymcp/pkg/monitoring"
)

func newTestTransport(t *testing.T, config HTTPTransportConfig) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	mcpSrv := mcpserver.NewMCPServer("test-server", "1.0.0")
	transport := NewHTTPTransport(mcpSrv, config, discardLogger())
	server := httptest.NewServer(transport.Handler())
	t.Cleanup(func() {
		server.Close()
		_ = transport.Shutdown(context.Background())
	})
	return transport, server
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHTTPTransportDefaults(t *testing.T) {
	transport, _ := newTestTransport(t, HTTPTransportConfig{RateLimit: 5})
	cfg := transport.GetConfig()
	if cfg.SSEEndpoint != "/sse" || cfg.MsgEndpoint != "/message" || cfg.ToolsEndpoint != "/tools" {
		t.Errorf("endpoints = %s %s %s", cfg.SSEEndpoint, cfg.MsgEndpoint, cfg.ToolsEndpoint)
	}
	if cfg.RateLimit != 5 || cfg.RateBurst != 20 {
		t.Errorf("rate = %v burst %d", cfg.RateLimit, cfg.RateBurst)
	}
}

func TestHTTPTransportServiceDiscovery(t *testing.T) {
	_, server := newTestTransport(t, HTTPTransportConfig{BaseURL: "http://localhost:8080"})

	var discovery struct {
		Service   string            `json:"service"`
		Transport string            `json:"transport"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if status := getJSON(t, server.URL+"/", &discovery); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if discovery.Service != monitoring.ServiceName || discovery.Transport != "HTTP+SSE" {
		t.Errorf("discovery = %+v", discovery)
	}
	if discovery.Endpoints["sse"] != "http://localhost:8080/sse" {
		t.Errorf("sse endpoint = %q", discovery.Endpoints["sse"])
	}
	if discovery.Endpoints["tools"] != "http://localhost:8080/tools/{name}" {
		t.Errorf("tools endpoint = %q", discovery.Endpoints["tools"])
	}

	if status := getJSON(t, server.URL+"/no-such-page", nil); status != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", status)
	}
}

func TestHTTPTransportHealthEndpoints(t *testing.T) {
	transport, server := newTestTransport(t, DefaultHTTPTransportConfig())

	var health map[string]any
	if status := getJSON(t, server.URL+"/health", &health); status != http.StatusOK || health["status"] != "ok" {
		t.Errorf("fallback health = %d %v", status, health)
	}

	hc := monitoring.NewHealthChecker(monitoring.ServiceName, "test")
	t.Cleanup(hc.Shutdown)
	hc.SetTables("london-2024")
	transport.SetHealthChecker(hc)

	var full monitoring.ServiceHealth
	if status := getJSON(t, server.URL+"/health", &full); status != http.StatusOK {
		t.Fatalf("health status = %d", status)
	}
	if full.Service != monitoring.ServiceName || full.Status != "healthy" {
		t.Errorf("health = %+v", full)
	}

	var ready map[string]any
	if status := getJSON(t, server.URL+"/ready", &ready); status != http.StatusOK || ready["ready"] != true {
		t.Errorf("ready = %d %v", status, ready)
	}
	var live map[string]any
	if status := getJSON(t, server.URL+"/live", &live); status != http.StatusOK || live["alive"] != true {
		t.Errorf("live = %d %v", status, live)
	}

	resp, err := http.Post(server.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", resp.StatusCode)
	}
}

func TestHTTPTransportDebugEndpoints(t *testing.T) {
	_, server := newTestTransport(t, DefaultHTTPTransportConfig())
	for _, path := range []string{"/sse/debug", "/message/debug"} {
		var debug map[string]any
		if status := getJSON(t, server.URL+path, &debug); status != http.StatusOK {
			t.Errorf("%s status = %d", path, status)
		}
		if debug["transport"] != "HTTP+SSE" {
			t.Errorf("%s = %v", path, debug)
		}
	}
}

func TestHTTPTransportSSEEndpoint(t *testing.T) {
	_, server := newTestTransport(t, DefaultHTTPTransportConfig())

	req, err := http.NewRequest(http.MethodGet, server.URL+"/sse", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		t.Fatalf("connect to SSE endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing from the SSE response")
	}
}

func TestHTTPTransportMessageWithoutSession(t *testing.T) {
	_, server := newTestTransport(t, DefaultHTTPTransportConfig())

	resp, err := http.Post(server.URL+"/message", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"initialize","id":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		t.Error("POST /message is not routed")
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without a session", resp.StatusCode)
	}
}

func TestHTTPTransportToolsEndpoint(t *testing.T) {
	_, server := newTestTransport(t, HTTPTransportConfig{RateLimit: 0.001, RateBurst: 2})

	post := func() *http.Response {
		resp, err := http.Post(server.URL+"/tools/resolve_station", "application/json",
			strings.NewReader(`{"station": "Stratford"}`))
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	for i := 0; i < 2; i++ {
		resp := post()
		var res struct {
			Station string `json:"station"`
			Zones   []int  `json:"zones"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || res.Station != "stratford" || len(res.Zones) != 2 {
			t.Fatalf("call %d: %d %+v", i, resp.StatusCode, res)
		}
	}

	resp := post()
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third call = %d, want 429 after the burst", resp.StatusCode)
	}

	// Health checks bypass the limiter.
	if status := getJSON(t, server.URL+"/health", nil); status != http.StatusOK {
		t.Errorf("health while limited = %d", status)
	}
}

func TestHTTPTransportStartTwice(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("test-server", "1.0.0")
	transport := NewHTTPTransport(mcpSrv, HTTPTransportConfig{Addr: "127.0.0.1:0"}, discardLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- transport.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		transport.mu.RLock()
		started := transport.httpSrv != nil
		transport.mu.RUnlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := transport.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	if err := transport.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := <-errCh; err != http.ErrServerClosed {
		t.Errorf("Start() returned %v, want ErrServerClosed", err)
	}
}
