// Package observability sets up OpenTelemetry tracing.
package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docsign/internal/config"
	"docsign/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// InitTracing installs a global tracer provider when cfg.Exporter is set and
// returns its shutdown func. With no exporter it returns a no-op shutdown and
// the global no-op provider stays in place.
//
// The OTLP exporter reads its endpoint and headers from the standard
// OTEL_EXPORTER_OTLP_* variables.
func InitTracing(ctx context.Context, log *logger.Logger, cfg config.TelemetryConfig, environment string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	exporter, err := buildExporter(ctx, cfg.Exporter)
	if err != nil {
		return noop, err
	}
	if exporter == nil {
		return noop, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "docsign"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("deployment.environment", environment),
	))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", serviceName, "exporter", cfg.Exporter)
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, kind string) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return nil, nil
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER %q (want stdout or otlp)", kind)
	}
}
