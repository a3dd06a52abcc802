package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string  `json:"addr"`             // HTTP server address (e.g., ":7082")
	BaseURL        string  `json:"base_url"`         // Base URL for service discovery
	SSEEndpoint    string  `json:"sse_endpoint"`     // SSE endpoint path (default: "/sse")
	MsgEndpoint    string  `json:"msg_endpoint"`     // Message endpoint path (default: "/message")
	ToolsEndpoint  string  `json:"tools_endpoint"`   // Plain JSON tool endpoint prefix (default: "/tools")
	RateLimit      float64 `json:"rate_limit"`       // Requests per second per IP (0 = disabled)
	RateBurst      int     `json:"rate_burst"`       // Burst size for rate limiter
	MaxRequestSize int64   `json:"max_request_size"` // Maximum request body size in bytes
	MaxHeaderBytes int     `json:"max_header_bytes"` // Maximum header size in bytes
	TLSCertFile    string  `json:"tls_cert_file"`    // Path to TLS certificate file
	TLSKeyFile     string  `json:"tls_key_file"`     // Path to TLS private key file
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		ToolsEndpoint:  "/tools",
		RateLimit:      10,       // 10 requests per second per IP
		RateBurst:      20,       // Allow bursts of 20
		MaxRequestSize: 1 << 20,  // 1 MB
		MaxHeaderBytes: 64 << 10, // 64 KB
	}
}

// withDefaults fills zero fields from DefaultHTTPTransportConfig. A zero
// RateLimit stays zero and disables rate limiting.
func (c HTTPTransportConfig) withDefaults() HTTPTransportConfig {
	def := DefaultHTTPTransportConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.SSEEndpoint == "" {
		c.SSEEndpoint = def.SSEEndpoint
	}
	if c.MsgEndpoint == "" {
		c.MsgEndpoint = def.MsgEndpoint
	}
	if c.ToolsEndpoint == "" {
		c.ToolsEndpoint = def.ToolsEndpoint
	}
	if c.RateBurst <= 0 {
		c.RateBurst = def.RateBurst
	}
	if c.MaxRequestSize <= 0 {
		c.MaxRequestSize = def.MaxRequestSize
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = def.MaxHeaderBytes
	}
	return c
}

// HTTPTransport implements HTTP+SSE dual transport for MCP
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	sseServer     *mcpserver.SSEServer
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport instance
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	sseServer := mcpserver.NewSSEServer(
		mcpServer,
		mcpserver.WithSSEEndpoint(config.SSEEndpoint),
		mcpserver.WithMessageEndpoint(config.MsgEndpoint),
		mcpserver.WithBaseURL(config.BaseURL),
	)

	transport := &HTTPTransport{
		config:    config,
		logger:    logger,
		sseServer: sseServer,
		mux:       http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		transport.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}

	transport.setupRoutes()

	return transport
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

// setupRoutes configures all HTTP routes
func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.handleServiceDiscovery)

	// Health endpoints are never rate limited.
	t.mux.HandleFunc("/health", t.probe((*monitoring.HealthChecker).HealthHandler,
		map[string]any{"status": monitoring.StatusOK}))
	t.mux.HandleFunc("/ready", t.probe((*monitoring.HealthChecker).ReadinessHandler,
		map[string]any{"ready": true, "status": monitoring.StatusOK}))
	t.mux.HandleFunc("/live", t.probe((*monitoring.HealthChecker).LivenessHandler,
		map[string]any{"alive": true}))

	t.mux.HandleFunc(t.config.SSEEndpoint+"/debug", t.handleSSEDebug)
	t.mux.HandleFunc(t.config.MsgEndpoint+"/debug", t.handleMessageDebug)

	t.mux.Handle(t.config.SSEEndpoint, t.limited(t.sseServer.SSEHandler()))
	t.mux.Handle(t.config.SSEEndpoint+"/", t.limited(t.sseServer.SSEHandler()))
	t.mux.Handle(t.config.MsgEndpoint, t.limited(t.sseServer.MessageHandler()))
	t.mux.Handle(t.config.MsgEndpoint+"/", t.limited(t.sseServer.MessageHandler()))

	t.mux.Handle(t.config.ToolsEndpoint+"/", t.limited(http.StripPrefix(t.config.ToolsEndpoint, NewHandler(t.logger))))
}

// limited applies the per-IP rate limiter when one is configured
func (t *HTTPTransport) limited(next http.Handler) http.Handler {
	if t.rateLimiter == nil {
		return next
	}
	return t.rateLimiter.Middleware(next)
}

// handleServiceDiscovery provides service discovery for MCP clients
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || (t.config.TLSCertFile != "" && t.config.TLSKeyFile != "") {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	discovery := map[string]any{
		"service":   monitoring.ServiceName,
		"transport": "HTTP+SSE",
		"endpoints": map[string]string{
			"sse":     baseURL + t.config.SSEEndpoint,
			"message": baseURL + t.config.MsgEndpoint,
			"tools":   baseURL + t.config.ToolsEndpoint + "/{name}",
		},
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": false,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(discovery); err != nil {
		t.logger.Error("failed to encode service discovery response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// probe serves a health route through the health checker when one is set,
// and a static OK body otherwise.
func (t *HTTPTransport) probe(pick func(*monitoring.HealthChecker) http.HandlerFunc, fallback map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		t.mu.RLock()
		hc := t.healthChecker
		t.mu.RUnlock()
		if hc != nil {
			pick(hc)(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(fallback); err != nil {
			t.logger.Error("failed to encode probe response", "path", r.URL.Path, "error", err)
		}
	}
}

// handleSSEDebug describes the SSE endpoint
func (t *HTTPTransport) handleSSEDebug(w http.ResponseWriter, r *http.Request) {
	t.writeDebug(w, r, map[string]any{
		"endpoint":    t.config.SSEEndpoint,
		"description": "Server-Sent Events endpoint for MCP communication",
		"usage":       "Connect with Accept: text/event-stream header",
		"transport":   "HTTP+SSE",
	})
}

// handleMessageDebug describes the message endpoint
func (t *HTTPTransport) handleMessageDebug(w http.ResponseWriter, r *http.Request) {
	t.writeDebug(w, r, map[string]any{
		"endpoint":    t.config.MsgEndpoint,
		"description": "JSON-RPC message endpoint for MCP communication",
		"usage":       "POST JSON-RPC messages with sessionId query parameter",
		"transport":   "HTTP+SSE",
	})
}

func (t *HTTPTransport) writeDebug(w http.ResponseWriter, r *http.Request, debug map[string]any) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(debug); err != nil {
		t.logger.Error("failed to encode debug response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Handler returns the routed handler wrapped in the standard middleware
func (t *HTTPTransport) Handler() http.Handler {
	return Chain(t.mux,
		TracingMiddleware(),
		LoggingMiddleware(t.logger),
		SecurityHeaders,
		RequestSizeLimiter(t.config.MaxRequestSize),
	)
}

// Start begins serving HTTP requests
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	t.httpSrv = &http.Server{
		Addr:           t.config.Addr,
		Handler:        t.Handler(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv

	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"tools_endpoint", t.config.ToolsEndpoint,
		"base_url", t.config.BaseURL,
		"rate_limit", t.config.RateLimit,
		"tls_enabled", tls)
	t.mu.Unlock() // Release lock before blocking call

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
		t.rateLimiter = nil
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown SSE server", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetBaseURL returns the configured base URL
func (t *HTTPTransport) GetBaseURL() string {
	return t.config.BaseURL
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
