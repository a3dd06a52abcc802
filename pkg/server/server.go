// Package server provides the MCP server exposing the journey calculators.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/tools"
	"github.com/NERVsystems/journeymcp/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "journey-mcp-server"

// Server encapsulates the MCP server with the journey tools.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates a new journey MCP server with all tools registered.
// The tools price against whatever tools.Configure installed.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing journey MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	registry := tools.NewRegistry(logger)
	registry.RegisterTools(srv)

	return &Server{
		srv:    srv,
		logger: logger,
	}, nil
}

// Run serves MCP over stdin/stdout until stdin closes or Shutdown is called.
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext serves MCP over stdin/stdout until ctx is cancelled, stdin
// closes or Shutdown is called. A server runs at most once at a time.
func (s *Server) RunWithContext(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("server: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		close(done)
	}()

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Debug("serving MCP over stdio")
	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown stops a running server. It does not block; use WaitForShutdown.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// WaitForShutdown blocks until a running server has stopped.
func (s *Server) WaitForShutdown() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// Handler serves the tools as plain JSON over HTTP: POST /tools/{name}
// with the tool arguments as the request body. Calls go through the same
// validation, metrics and tracing as MCP calls.
type Handler struct {
	logger *slog.Logger
	tools  map[string]tools.HandlerFunc
}

// NewHandler creates a new tool handler
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	registry := tools.NewRegistry(logger)
	h := &Handler{
		logger: logger,
		tools:  make(map[string]tools.HandlerFunc),
	}
	for _, def := range registry.GetToolDefinitions() {
		h.tools[def.Name] = registry.Wrap(def)
	}
	return h
}

// ServeHTTP implements the http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, err := h.handleTool(w, r)
	if err == nil {
		return
	}

	reqID := RequestIDFrom(r.Context())
	if reqID == "" {
		reqID = generateRequestID()
	}
	h.logger.Error("tool request failed",
		"request_id", reqID,
		"path", r.URL.Path,
		"status", status,
		"error", err)
	if status == http.StatusInternalServerError {
		_, _ = writeResult(w, status, core.FromError(err).ToMCPResult())
	}
}

func (h *Handler) handleTool(w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return http.StatusMethodNotAllowed, nil
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/tools"), "/")
	handler, ok := h.tools[name]
	if !ok {
		http.NotFound(w, r)
		return http.StatusNotFound, nil
	}

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && err != io.EOF {
		return writeResult(w, http.StatusBadRequest,
			core.NewError(core.ErrParseError, "Request body must be a JSON object of tool arguments").ToMCPResult())
	}

	result, err := handler(r.Context(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return http.StatusInternalServerError, err
	}

	status := http.StatusOK
	if result.IsError {
		status = http.StatusBadRequest
	}
	return writeResult(w, status, result)
}

// writeResult writes the text content of a tool result as the response body
func writeResult(w http.ResponseWriter, status int, result *mcp.CallToolResult) (int, error) {
	var content string
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			content = t.Text
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(content)); err != nil {
		return status, err
	}
	return status, nil
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return time.Now().Format("20060102150405.000000000")
}
