package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsRecorder receives one observation per finished API request.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// exemplarRecorder is implemented by recorders that link observations to
// the active trace.
type exemplarRecorder interface {
	RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration)
}

// unmeteredPaths are scraped or long-lived and would skew request latency.
var unmeteredPaths = map[string]struct{}{
	"/metrics":   {},
	"/ws/events": {},
}

// Metrics records request count, latency and in-flight connections.
// A panicking handler is recorded as a 500 before the panic continues.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	observe := func(r *http.Request, status int, elapsed time.Duration) {
		path, code := metricsPath(r), strconv.Itoa(status)
		if er, ok := recorder.(exemplarRecorder); ok {
			er.RecordHTTPRequestWithContext(r.Context(), r.Method, path, code, elapsed)
			return
		}
		recorder.RecordHTTPRequest(r.Method, path, code, elapsed)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := unmeteredPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					observe(r, http.StatusInternalServerError, time.Since(start))
					panic(p)
				}
			}()

			next.ServeHTTP(sw, r)
			observe(r, sw.status, time.Since(start))
		})
	}
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// metricsPath prefers the matched chi route pattern so user names and lead
// ids do not become label values.
func metricsPath(r *http.Request) string {
	if pattern := routePattern(r); pattern != "" && pattern != r.URL.Path {
		return pattern
	}
	return collapseIDs(r.URL.Path)
}

// collapseIDs replaces UUID, lead id and numeric path segments with ":id".
func collapseIDs(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if isUUID(part) || isLeadID(part) || isNumeric(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// isLeadID matches the 8 character lowercase hex ids issued for leads.
func isLeadID(s string) bool {
	if len(s) != 8 {
		return false
	}
	digits := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return digits > 0
}
