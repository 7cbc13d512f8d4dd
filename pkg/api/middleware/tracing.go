package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "brilliox.http"

// TracingOptions controls which requests get a server span.
type TracingOptions struct {
	// SkipPaths are matched exactly.
	SkipPaths map[string]struct{}
	// SkipPrefixes are matched against the start of the path.
	SkipPrefixes []string
}

// DefaultTracingOptions skips probes, the event stream and dashboard assets.
func DefaultTracingOptions() TracingOptions {
	return TracingOptions{
		SkipPaths: map[string]struct{}{
			"/health":    {},
			"/ready":     {},
			"/metrics":   {},
			"/ws/events": {},
		},
		SkipPrefixes: []string{"/app/"},
	}
}

func (o TracingOptions) skip(path string) bool {
	if _, ok := o.SkipPaths[path]; ok {
		return true
	}
	for _, p := range o.SkipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Tracing starts a server span per request, continuing any inbound trace
// context. The span is renamed to the matched chi route once the handler
// returns. Only 5xx responses mark the span as failed.
func Tracing(opts TracingOptions) func(http.Handler) http.Handler {
	tracer := otel.Tracer(httpTracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			if id := GetRequestID(ctx); id != "" {
				span.SetAttributes(attribute.String("brilliox.request_id", id))
			}

			wrapped := &tracingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(wrapped, r)

			if route := routePattern(r); route != "" {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			if user := chi.URLParam(r, "userID"); user != "" {
				span.SetAttributes(attribute.String("brilliox.user_id", user))
			}
			span.SetAttributes(attribute.Int("http.response.status_code", wrapped.statusCode))
			if wrapped.statusCode >= http.StatusInternalServerError {
				span.SetStatus(otelcodes.Error, http.StatusText(wrapped.statusCode))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return strings.TrimSpace(rc.RoutePattern())
	}
	return ""
}

type tracingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *tracingResponseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *tracingResponseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}
