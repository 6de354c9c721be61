package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// RequestIDHeader carries the per-request correlation ID
const RequestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// RequestID reuses an inbound X-Request-ID or generates a UUID, and echoes it
// on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern avoids high-cardinality paths in metric labels
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "/unknown"
}

// RequestMetrics counts requests and records latency per route.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		status := strconv.Itoa(wrapped.statusCode)
		observ.IncCounter("http_requests_total", map[string]string{"route": route, "status": status})
		observ.RecordDuration("http_request_duration", time.Since(start), map[string]string{"route": route})
		observ.Debug("http_request", map[string]any{
			"method":      r.Method,
			"route":       route,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  GetRequestID(r.Context()),
		})
	})
}

// Recovery turns a handler panic into a 500 response
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observ.IncCounter("http_panics_total", nil)
				observ.Error("http_panic", map[string]any{
					"panic":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
					"request_id": GetRequestID(r.Context()),
				})
				writeError(w, r, http.StatusInternalServerError, "internal", "internal server error", 0)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// LimitRate rejects requests beyond l's rate with 429 before any provider
// budget is touched.
func LimitRate(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				observ.IncCounter("http_rate_limited_total", map[string]string{"route": routePattern(r)})
				writeError(w, r, http.StatusTooManyRequests, "local_rate_limited", "too many requests to this endpoint", time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
