package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/journeymcp/pkg/monitoring"
	"github.com/NERVsystems/journeymcp/pkg/server"
	"github.com/NERVsystems/journeymcp/pkg/tables"
	"github.com/NERVsystems/journeymcp/pkg/tools"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
	ver "github.com/NERVsystems/journeymcp/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	generateConfig  string
	mergeOnly       bool

	// Fare and emission tables
	tablesPath    string
	checkTables   bool
	tablesRecheck time.Duration

	// HTTP transport flags
	enableHTTP  bool
	httpOnly    bool
	httpAddr    string
	httpBaseURL string
	rateLimit   float64
	rateBurst   int

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&generateConfig, "generate-config", "", "Generate an MCP client config file at the specified path")
	flag.BoolVar(&mergeOnly, "merge-only", false, "Only merge new config, don't overwrite existing")

	flag.StringVar(&tablesPath, "tables", "", "JSON fare and emission tables (built-in London 2024 tables if empty)")
	flag.BoolVar(&checkTables, "check-tables", false, "Validate the tables file and exit")
	flag.DurationVar(&tablesRecheck, "tables-check-interval", time.Minute, "How often the health checker re-validates the tables file")

	flag.BoolVar(&enableHTTP, "enable-http", false, "Enable HTTP+SSE transport (in addition to stdio)")
	flag.BoolVar(&httpOnly, "http-only", false, "Run HTTP transport only, skip stdio (requires --enable-http)")
	flag.StringVar(&httpAddr, "http-addr", ":7082", "HTTP server address")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")
	flag.Float64Var(&rateLimit, "rate-limit", 10, "HTTP requests per second per client IP (0 disables)")
	flag.IntVar(&rateBurst, "rate-burst", 20, "HTTP rate limit burst size")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
}

func main() {
	flag.Parse()

	var logLevel slog.Level
	if debug {
		logLevel = slog.LevelDebug
	} else {
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if showVersionFlag {
		showVersion()
		return
	}

	if generateConfig != "" {
		if err := generateClientConfig(generateConfig, mergeOnly); err != nil {
			logger.Error("failed to generate config", "error", err)
			os.Exit(1)
		}
		logger.Info("successfully generated MCP client config", "path", generateConfig)
		return
	}

	set, err := loadTables(tablesPath)
	if err != nil {
		logger.Error("failed to load tables", "path", tablesPath, "error", err)
		os.Exit(1)
	}
	if checkTables {
		fmt.Printf("tables %q OK\n", set.Name)
		return
	}

	calcs, err := tools.NewCalculators(set, logger)
	if err != nil {
		logger.Error("failed to build calculators", "error", err)
		os.Exit(1)
	}
	tools.Configure(calcs)

	// Tracing is optional; the server runs without it.
	tracingCtx := context.Background()
	shutdownTracing, err := tracing.InitTracing(tracingCtx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(tracingCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()

		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting journey MCP server",
		"version", ver.BuildVersion,
		"log_level", logLevel.String(),
		"tables", set.Name,
		"http_enabled", enableHTTP,
		"rate_limit", rateLimit,
		"monitoring_enabled", enableMonitoring,
		"monitoring_addr", monitoringAddr)

	var healthChecker *monitoring.HealthChecker
	if enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
		healthChecker.SetTables(set.Name)

		transport := monitoring.TransportInfo{Type: "stdio"}
		if enableHTTP {
			transport = monitoring.TransportInfo{Type: "http+sse", HTTPAddr: httpAddr}
			if !httpOnly {
				transport.Type = "stdio+http+sse"
			}
		}
		healthChecker.SetTransport(transport)

		if tablesPath != "" {
			tablesMonitor := monitoring.NewComponentMonitor("tables", healthChecker, func() error {
				_, err := tables.LoadFile(tablesPath)
				return err
			}, tablesRecheck)
			tablesMonitor.Start()
			defer tablesMonitor.Stop()
		}
	}

	s, err := server.NewServer(logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Prometheus metrics only; health lives on the HTTP transport.
	var monitoringServer *http.Server
	if enableMonitoring {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		monitoringServer = &http.Server{
			Addr:              monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}

		go func() {
			logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitoring server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown monitoring server", "error", err)
			}
		}()
	}

	var httpTransport *server.HTTPTransport
	if enableHTTP {
		config := server.HTTPTransportConfig{
			Addr:      httpAddr,
			BaseURL:   httpBaseURL,
			RateLimit: rateLimit,
			RateBurst: rateBurst,
		}

		httpTransport = server.NewHTTPTransport(s.GetMCPServer(), config, logger)
		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
		}

		go func() {
			logger.Info("starting HTTP+SSE transport", "addr", httpAddr)
			if err := httpTransport.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP transport error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := httpTransport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()
	}

	// Without HTTP, stdio blocks the main goroutine. With HTTP, stdio runs in
	// the background unless --http-only skips it.
	if !enableHTTP {
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
		if err := s.RunWithContext(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	} else if httpOnly {
		logger.Info("server_ready", "transports", []string{"http"}, "http_only", true)
		<-ctx.Done()
		logger.Info("shutdown signal received")
	} else {
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				logger.Error("stdio transport error", "error", err)
			}
		}()

		logger.Info("server_ready", "transports", []string{"stdio", "http"})
		<-ctx.Done()
		logger.Info("shutdown signal received")
		s.WaitForShutdown()
	}

	logger.Info("server stopped")
}

// loadTables reads the tables file, or builds the defaults when path is empty
func loadTables(path string) (*tables.Set, error) {
	if path == "" {
		return tables.Default()
	}
	return tables.LoadFile(path)
}

// generateClientConfig writes an mcpServers entry that launches this binary
// over stdio.
func generateClientConfig(path string, mergeOnly bool) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return fmt.Errorf("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	configDir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var existingConfig map[string]any
	if mergeOnly {
		if data, err := os.ReadFile(cleanPath); err == nil {
			if err := json.Unmarshal(data, &existingConfig); err != nil {
				return fmt.Errorf("failed to parse existing config: %w", err)
			}
		}
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	args := []string{}
	if tablesPath != "" {
		abs, err := filepath.Abs(tablesPath)
		if err != nil {
			return fmt.Errorf("failed to resolve tables path: %w", err)
		}
		args = append(args, "--tables", abs)
	}

	servers := map[string]any{}
	if existing, ok := existingConfig["mcpServers"].(map[string]any); ok {
		for k, v := range existing {
			servers[k] = v
		}
	}
	servers[monitoring.ServiceName] = map[string]any{
		"command": execPath,
		"args":    args,
	}

	config := map[string]any{}
	for k, v := range existingConfig {
		config[k] = v
	}
	config["mcpServers"] = servers

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// validateSafePath rejects paths outside the current working directory
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed for security reasons")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}

	return nil
}

func showVersion() {
	fmt.Println(ver.String())
}
