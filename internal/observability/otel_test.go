package observability

import (
	"context"
	"testing"

	"docsign/internal/config"
	"docsign/internal/logger"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), logger.Nop(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), logger.Nop(), config.TelemetryConfig{Exporter: "stdout", ServiceName: "docsign-test"}, "test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), logger.Nop(), config.TelemetryConfig{Exporter: "zipkin"}, "test"); err == nil {
		t.Error("expected error")
	}
}
