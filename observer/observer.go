// Package observer wires the engine's tracing contract to OpenTelemetry.
package observer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const scopeName = "github.com/loomrun/loom/observer"

// Config configures the OTLP/HTTP trace exporter backing NewTracer.
type Config struct {
	ServiceName string
	Endpoint    string // empty uses the exporter's default resolution
	Insecure    bool
}

// Init installs a global OTEL TracerProvider exporting spans over OTLP/HTTP.
// Returns a shutdown func that must be called to flush pending spans. If
// Endpoint is empty the exporter falls back to its standard environment
// variable resolution (OTEL_EXPORTER_OTLP_ENDPOINT).
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observer: create exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("observer: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
