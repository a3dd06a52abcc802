package server

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/NERVsystems/journeymcp/pkg/tracing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := tracing.Tracer
	tracing.Install(tp)
	t.Cleanup(func() {
		tracing.Tracer = previous
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTracingMiddleware(t *testing.T) {
	recorder := recordSpans(t)

	tests := []struct {
		name       string
		method     string
		target     string
		status     int
		wantStatus codes.Code
		wantName   string
	}{
		{"success", http.MethodGet, "/tools/list_stations?sessionId=123", http.StatusOK, codes.Ok, "GET /tools/list_stations"},
		{"error", http.MethodPost, "/error", http.StatusInternalServerError, codes.Error, "POST /error"},
		{"client error", http.MethodGet, "/missing", http.StatusNotFound, codes.Error, "GET /missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := TracingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}

			spans := recorder.Ended()
			got := spans[len(spans)-1]
			if got.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", got.Name(), tt.wantName)
			}
			if got.Status().Code != tt.wantStatus {
				t.Errorf("span status = %v, want %v", got.Status().Code, tt.wantStatus)
			}
		})
	}

	var session string
	for _, kv := range recorder.Ended()[0].Attributes() {
		if string(kv.Key) == tracing.AttrHTTPSessionID {
			session = kv.Value.AsString()
		}
	}
	if session != "123" {
		t.Errorf("session attribute = %q, want 123", session)
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := newResponseWriter(rec)

	var _ http.Flusher = wrapped
	if wrapped.Unwrap() != rec {
		t.Error("Unwrap() should return the underlying writer")
	}
	if err := http.NewResponseController(wrapped).Flush(); err != nil {
		t.Errorf("ResponseController.Flush() error = %v", err)
	}

	wrapped.WriteHeader(http.StatusTeapot)
	wrapped.WriteHeader(http.StatusOK)
	if wrapped.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want the first status written", wrapped.statusCode)
	}
	n, _ := wrapped.Write([]byte("tea"))
	if n != 3 || wrapped.bytesWritten != 3 {
		t.Errorf("bytesWritten = %d", wrapped.bytesWritten)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var (
		flusher bool
		seenID  string
	)
	handler := LoggingMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flusher = w.(http.Flusher)
		seenID = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))
	if !flusher {
		t.Error("http.Flusher not preserved through middleware")
	}
	if seenID == "" || rec.Header().Get("X-Request-ID") != seenID {
		t.Errorf("request ID %q not echoed (header %q)", seenID, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "probe-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seenID != "probe-1" || rec.Header().Get("X-Request-ID") != "probe-1" {
		t.Errorf("caller request ID not kept: %q", seenID)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "first,second,handler" {
		t.Errorf("order = %v", order)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing over TLS")
	}
}

func TestRequestSizeLimiter(t *testing.T) {
	handler := RequestSizeLimiter(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	if rec.Code != http.StatusOK {
		t.Errorf("small body status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large a body")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body status = %d, want 413", rec.Code)
	}
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5000", "10.0.0.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:5000", "203.0.113.7"},
		{"bad forwarded falls through", map[string]string{"X-Forwarded-For": "nonsense", "X-Real-IP": "198.51.100.3"}, "10.0.0.1:5000", "198.51.100.3"},
		{"no port", nil, "10.0.0.9", "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getIP(req); got != tt.want {
				t.Errorf("getIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
