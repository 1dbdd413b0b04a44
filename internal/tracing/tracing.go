// Package tracing wires verification runs into OpenTelemetry. The teacher's
// root go.mod carries otel/otel-trace without ever opening a span with
// them; this package is where that dependency actually gets exercised, in
// the style of the teacher's own backend/internal/infrastructure/tracing.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls whether runs are traced and where spans are exported.
type Config struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRate  float64
}

// Provider wraps an OpenTelemetry TracerProvider for lifecycle management.
// A nil *Provider is valid and yields a no-op tracer, so the core engine
// never requires a configured OTel collector.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a Provider from cfg. Returns (nil, nil) when tracing
// is disabled.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Tracer returns the provider's tracer, or a no-op tracer for a nil
// Provider.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return noop.NewTracerProvider().Tracer("avtrace")
	}
	return p.tracer
}

// Shutdown flushes and closes the exporter. Safe to call on a nil
// Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartRun opens the root span for one Verify invocation.
func StartRun(ctx context.Context, tracer trace.Tracer, taskName string, frameCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "verify.Run",
		trace.WithAttributes(
			attribute.String("task.name", taskName),
			attribute.Int("trace.frame_count", frameCount),
		),
	)
}

// StartNode opens a child span for one node's candidate collection.
func StartNode(ctx context.Context, tracer trace.Tracer, nodeID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "verify.CollectNode",
		trace.WithAttributes(attribute.String("node.id", nodeID)),
	)
}

// EndNode records the outcome of a node's candidate collection and closes
// its span.
func EndNode(span trace.Span, candidateCount int, matched bool) {
	span.SetAttributes(
		attribute.Int("node.candidate_count", candidateCount),
		attribute.Bool("node.matched", matched),
	)
	span.End()
}
