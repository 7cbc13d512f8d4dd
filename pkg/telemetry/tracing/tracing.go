// Package tracing configures the process-wide OpenTelemetry tracer provider
// used by the API middleware, the AI generator and the event bus.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/logger"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Service identifies the process in exported spans.
type Service struct {
	Name        string
	Version     string
	Environment string
}

func (s Service) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.Name),
		semconv.ServiceVersion(s.Version),
	}
	if env := strings.TrimSpace(s.Environment); env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(env))
	}
	return attrs
}

// newExporter is replaced in tests.
var newExporter = func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(collectorHost(cfg.Endpoint)),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Init installs the global tracer provider and W3C propagators. Disabled
// tracing installs a no-op provider. Export failures are logged and never
// reach the request path.
func Init(ctx context.Context, cfg config.TracingConfig, svc Service) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}
	if err := checkConfig(cfg, svc); err != nil {
		return nil, err
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}
	exp = &forgivingExporter{next: exp, endpoint: collectorHost(cfg.Endpoint), log: logger.Global()}

	res, err := resource.New(ctx, resource.WithAttributes(svc.attributes()...), resource.WithHost())
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		flushErr := tp.ForceFlush(ctx)
		if err := tp.Shutdown(ctx); err != nil {
			return errors.Join(flushErr, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		if flushErr != nil {
			return fmt.Errorf("flush spans: %w", flushErr)
		}
		return nil
	}, nil
}

func checkConfig(cfg config.TracingConfig, svc Service) error {
	switch {
	case strings.TrimSpace(svc.Name) == "":
		return errors.New("tracing: service name is required")
	case strings.TrimSpace(cfg.Exporter) == "":
		return errors.New("tracing: exporter is required")
	case collectorHost(cfg.Endpoint) == "":
		return errors.New("tracing: endpoint is required")
	case cfg.Timeout <= 0:
		return errors.New("tracing: timeout must be positive")
	}
	return nil
}

// forgivingExporter logs failed batches instead of returning the error to
// the batch processor, which would otherwise report it through otel.Handle.
type forgivingExporter struct {
	next     sdktrace.SpanExporter
	endpoint string
	log      logger.Logger
	dropped  atomic.Int64
}

func (e *forgivingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.next.ExportSpans(ctx, spans); err != nil {
		total := e.dropped.Add(int64(len(spans)))
		e.log.Warn("Span export failed",
			"error", err,
			"endpoint", e.endpoint,
			"spans", len(spans),
			"dropped_total", total,
		)
	}
	return nil
}

func (e *forgivingExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

func sampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.SampleRate)
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

// collectorHost accepts "host:port" or a URL and returns host:port.
func collectorHost(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
