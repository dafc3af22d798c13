package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDialTarget(t *testing.T) {
	testCases := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{name: "bare host port", endpoint: "localhost:4317", wantTarget: "localhost:4317", wantInsecure: true},
		{name: "http scheme", endpoint: "http://localhost:4317", wantTarget: "localhost:4317", wantInsecure: true},
		{name: "https scheme", endpoint: "https://collector:4317", wantTarget: "collector:4317", wantInsecure: false},
		{name: "https with override", endpoint: "https://collector:4317", override: true, wantTarget: "collector:4317", wantInsecure: true},
		{name: "path dropped", endpoint: "http://collector:4317/v1/traces", wantTarget: "collector:4317", wantInsecure: true},
		{name: "query dropped", endpoint: "http://collector:4317?param=value", wantTarget: "collector:4317", wantInsecure: true},
		{name: "malformed", endpoint: "http://[invalid", wantErr: true},
		{name: "scheme only", endpoint: "http://", wantErr: true},
		{name: "invalid characters", endpoint: "://invalid", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, insecure, err := dialTarget(tc.endpoint, tc.override)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("dialTarget(%q) expected error", tc.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("dialTarget(%q): %v", tc.endpoint, err)
			}
			if target != tc.wantTarget {
				t.Errorf("target = %q, want %q", target, tc.wantTarget)
			}
			if insecure != tc.wantInsecure {
				t.Errorf("insecure = %v, want %v", insecure, tc.wantInsecure)
			}
		})
	}
}

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders empty endpoint: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
		t.Fatal("no-op providers should all be non-nil")
	}
	if providers.Shutdown == nil {
		t.Fatal("Shutdown should not be nil")
	}

	// No-op shutdown: idempotent and safe with a nil context.
	if err := providers.Shutdown(ctx); err != nil {
		t.Errorf("first shutdown: %v", err)
	}
	if err := providers.Shutdown(ctx); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
	if err := providers.Shutdown(nil); err != nil {
		t.Errorf("shutdown with nil context: %v", err)
	}
}

func TestNewProviders_WhitespaceEndpoint(t *testing.T) {
	providers, err := NewProviders(context.Background(), "   ", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders whitespace endpoint: %v", err)
	}
	if providers == nil {
		t.Fatal("providers should not be nil")
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	_, err := NewProviders(context.Background(), "://invalid", "test-service", false)
	if err == nil {
		t.Fatal("NewProviders with invalid endpoint should return error")
	}
}

func TestNewProviders_RealEndpoint(t *testing.T) {
	ctx := context.Background()
	// OTLP gRPC exporters dial lazily, so construction succeeds without a collector.
	providers, err := NewProviders(ctx, "localhost:4317", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
		t.Fatal("all providers should be created")
	}

	// Shutdown flush will fail without a collector; bound it and ignore the error.
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestSetGlobal_WithProviders(t *testing.T) {
	providers, err := NewProviders(context.Background(), "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}

	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracerProvider)
		otel.SetMeterProvider(oldMeterProvider)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracerProvider {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() == oldMeterProvider {
		t.Error("MeterProvider should be updated")
	}
}

func TestSetGlobal_NilProviders(t *testing.T) {
	providers := &Providers{Shutdown: func(context.Context) error { return nil }}

	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()

	// Should not panic and should leave the globals alone.
	providers.SetGlobal()

	if otel.GetTracerProvider() != oldTracerProvider {
		t.Error("TracerProvider should not be updated when nil")
	}
	if otel.GetMeterProvider() != oldMeterProvider {
		t.Error("MeterProvider should not be updated when nil")
	}
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	ctx := context.Background()
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(ctx) }()

	providers := &Providers{
		TracerProvider: tp,
		Shutdown:       func(context.Context) error { return nil },
	}

	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracerProvider)
		otel.SetMeterProvider(oldMeterProvider)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracerProvider {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() != oldMeterProvider {
		t.Error("MeterProvider should not be updated when nil")
	}
}
