// Package trace provides support for tracing.
package trace

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Set of supported exporters.
const (
	ExporterDiscard = "discard"
	ExporterStdout  = "stdout"
	ExporterOTLP    = "otlp"
)

type Config struct {
	Env      string
	Endpoint string
	Service  string
	Exporter string

	// Writer receives spans for the stdout exporter. Defaults to os.Stderr.
	Writer io.Writer

	SampleFraction float64
}

func NewProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleFraction)),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.Service),
			attribute.String("environment", cfg.Env),
		)),
	)

	return provider, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterDiscard:
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))

	case ExporterOTLP:
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		))
	}

	return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
}
