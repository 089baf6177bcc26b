// Package tracing wires OTLP trace export for the flush pipeline. When no
// endpoint is configured the provider is inert and hands out a nil tracer,
// which the queue treats as tracing disabled.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 5 * time.Second

// Config holds trace export settings.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address as host:port. Empty
	// disables tracing.
	Endpoint string

	// Insecure sends spans over plain HTTP.
	Insecure bool

	// Sample is the trace sampling ratio in (0, 1].
	Sample float64

	// Version tags exported spans with the running build.
	Version string
}

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// New creates a provider. With an empty endpoint it returns an inert
// provider whose Tracer is nil.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return &Provider{}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	sample := cfg.Sample
	if sample <= 0 || sample > 1 {
		sample = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sample))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "inlet"),
			attribute.String("service.version", cfg.Version),
		)),
	)

	return &Provider{tp: tp}, nil
}

// Tracer returns the tracer for flush spans, or nil when tracing is
// disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p.tp == nil {
		return nil
	}
	return p.tp.Tracer("github.com/inletd/inlet")
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown flushes pending spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing: shutdown: %w", err)
	}
	return nil
}
