// Package middleware provides the HTTP middleware chain of the API server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brilliox/brilliox/pkg/logger"
)

// responseWriter records the status and body size written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Logger writes one record per request. Server errors log at error level,
// client errors at warn, the rest at info. Probe endpoints log at debug.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", wrapped.size,
				"remote_addr", r.RemoteAddr,
				"request_id", GetRequestID(r.Context()),
			}
			if user := chi.URLParam(r, "userID"); user != "" {
				args = append(args, "user_id", user)
			}

			ctx := r.Context()
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.ErrorContext(ctx, "HTTP request", args...)
			case wrapped.statusCode >= http.StatusBadRequest:
				log.WarnContext(ctx, "HTTP request", args...)
			case isProbe(r.URL.Path):
				log.DebugContext(ctx, "HTTP request", args...)
			default:
				log.InfoContext(ctx, "HTTP request", args...)
			}
		})
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}
