package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/journeymcp/pkg/core"
	"github.com/NERVsystems/journeymcp/pkg/monitoring"
	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFrom returns the request ID LoggingMiddleware stored in ctx
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware sees the request first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

const (
	defaultMaxVisitors = 10000
	visitorIdleTimeout = 3 * time.Minute
	visitorSweepPeriod = time.Minute
)

// RateLimiter is a per-client-IP token bucket. Client state lives in an LRU
// bounded at maxVisitors, so the least recently seen client is dropped first
// when the table is full.
type RateLimiter struct {
	visitors *lru.Cache[string, *visitor]
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// NewRateLimiter creates a limiter allowing r requests per second per IP with
// bursts of b, and starts its idle sweeper.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return newRateLimiter(r, b, defaultMaxVisitors)
}

func newRateLimiter(r rate.Limit, b, maxVisitors int) *RateLimiter {
	if maxVisitors < 1 {
		maxVisitors = defaultMaxVisitors
	}
	// lru.New only fails on a non-positive size.
	visitors, _ := lru.New[string, *visitor](maxVisitors)
	rl := &RateLimiter{
		visitors: visitors,
		rate:     r,
		burst:    b,
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(visitorSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle(visitorIdleTimeout)
		case <-rl.stop:
			return
		}
	}
}

// evictIdle drops clients not seen within idle and reports how many went.
func (rl *RateLimiter) evictIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle).UnixNano()
	evicted := 0
	// Keys are ordered least recently used first.
	for _, ip := range rl.visitors.Keys() {
		v, ok := rl.visitors.Peek(ip)
		if !ok {
			continue
		}
		if v.lastSeen.Load() >= cutoff {
			break
		}
		rl.visitors.Remove(ip)
		evicted++
	}
	return evicted
}

// Stop ends the idle sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Visitors returns the number of tracked client addresses
func (rl *RateLimiter) Visitors() int {
	return rl.visitors.Len()
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := rl.visitors.Get(ip); ok {
		v.lastSeen.Store(now)
		return v.limiter
	}
	v := &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
	v.lastSeen.Store(now)
	// A concurrent first request from the same IP may have won the insert.
	if found, _ := rl.visitors.ContainsOrAdd(ip, v); found {
		if existing, ok := rl.visitors.Get(ip); ok {
			return existing.limiter
		}
	}
	return v.limiter
}

// retryAfter is the whole number of seconds until one token refills
func (rl *RateLimiter) retryAfter() int {
	if rl.rate == rate.Inf || rl.rate <= 0 {
		return 1
	}
	// Trim float noise so rate.Every(90*time.Second) reports 90, not 91.
	return max(1, int(math.Ceil(1/float64(rl.rate)-1e-9)))
}

// Middleware rejects requests over the client's budget with 429 and a JSON
// RATE_LIMIT error.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limiter(getIP(r)).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		monitoring.RecordRateLimitExceeded("http")
		tracing.SetAttributes(r.Context(), attribute.String(tracing.AttrMCPToolStatus, tracing.StatusRateLimited))

		wait := rl.retryAfter()
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(core.NewError(core.ErrRateLimit, "Too many requests").
			WithGuidance(fmt.Sprintf("Wait %d seconds before retrying.", wait)))
	})
}

// getIP returns the client address: the first valid X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address.
func getIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestSizeLimiter caps request bodies at maxBytes
func RequestSizeLimiter(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets response headers for a JSON-only API. HSTS is only
// sent over TLS.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func isProbe(path string) bool {
	switch path {
	case "/health", "/ready", "/live":
		return true
	}
	return false
}

// LoggingMiddleware assigns a request ID, echoes it in X-Request-ID and
// logs one line per request. Health probes log at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = generateRequestID()
			}
			w.Header().Set("X-Request-ID", reqID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID))

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"bytes", wrapped.bytesWritten,
				"duration", time.Since(start),
				"remote_addr", getIP(r),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}

			level := slog.LevelInfo
			if isProbe(r.URL.Path) {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// responseWriter records the status and size of a response. It forwards
// Flush for the SSE stream and exposes Unwrap for http.ResponseController.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int64
	headerWritten bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// TracingMiddleware opens a server span per request named "METHOD /path".
// 4xx and 5xx responses mark the span as failed.
func TracingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []attribute.KeyValue{
				attribute.String(tracing.AttrHTTPMethod, r.Method),
				attribute.String(tracing.AttrHTTPPath, r.URL.Path),
				attribute.String("client.address", getIP(r)),
			}
			sessionID := r.URL.Query().Get("sessionId")
			if sessionID == "" {
				sessionID = r.Header.Get("X-Session-ID")
			}
			if sessionID != "" {
				attrs = append(attrs, attribute.String(tracing.AttrHTTPSessionID, sessionID))
			}

			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...))
			defer span.End()

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, wrapped.statusCode),
				attribute.Int64("http.response.body.size", wrapped.bytesWritten),
			)
			if wrapped.statusCode >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}
