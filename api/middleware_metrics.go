package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/metrics"
)

// RequestIDHeader carries the id generated for every request
const RequestIDHeader = "X-Request-ID"

const slowRequest = time.Second

// MetricsMiddleware tags each request with an id and records its latency by route template
func MetricsMiddleware(rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/metrics" || path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := uuid.New().String()
			w.Header().Set(RequestIDHeader, requestID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			route := path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			rec.ObserveHTTP(r.Method, route, wrapped.statusCode, duration)

			if duration > slowRequest {
				zap.S().Warnw("slow request",
					"requestId", requestID,
					"method", r.Method,
					"route", route,
					"duration", duration,
					"status", wrapped.statusCode)
			}
		})
	}
}

// responseWriter captures the status code. It implements http.Hijacker so websocket
// upgrades pass through.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
