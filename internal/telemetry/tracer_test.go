// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "mediamix", ExporterType: "grpc"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if provider.tp != nil {
		t.Error("Expected noop provider (tp == nil)")
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("Expected noop tracer span to be non-recording")
	}
	span.End()
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error on noop shutdown, got: %v", err)
	}
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "mediamix", ExporterType: "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid exporter type")
	}
	expectedMsg := "unsupported exporter type: invalid (supported: grpc, http)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestNewProviderWithExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewProviderWithExporter(context.Background(), Config{ServiceName: "mediamix", SamplingRate: 1}, exporter)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := Tracer(InstrumentationName).Start(context.Background(), "unit")
	span.End()
	if err := provider.tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "unit" {
		t.Fatalf("Expected one exported span named unit, got %v", spans)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := map[float64]string{
		1.0: "AlwaysOnSampler",
		0.0: "AlwaysOffSampler",
	}
	for rate, want := range tests {
		if got := samplerFor(rate).Description(); got != want {
			t.Errorf("samplerFor(%v) = %s, want %s", rate, got, want)
		}
	}
	if got := samplerFor(0.5).Description(); got == "" {
		t.Error("Expected ratio sampler description")
	}
}
