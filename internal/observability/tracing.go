package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/cory-johannsen/fpsnet/internal/config"
)

// TracerName is the instrumentation scope of relay spans.
const TracerName = "github.com/cory-johannsen/fpsnet"

// Tracer returns the relay tracer from the global provider. Without an
// installed SDK provider the spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// NewTracerProvider builds the SDK provider selected by cfg. Spans from the
// stdout exporter are written to w as JSON.
//
// Precondition: cfg must have passed validation; w must be non-nil for the
// stdout exporter.
// Postcondition: Returns nil and no error for the "none" exporter; the caller
// owns the returned provider and must Shutdown it.
func NewTracerProvider(cfg config.TracingConfig, service string, w io.Writer) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case config.TracingNone, "":
		return nil, nil
	case config.TracingStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("creating stdout span exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Exporter)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	), nil
}

// StartEventSpan opens a server span for one inbound event.
func StartEventSpan(ctx context.Context, tracer trace.Tracer, event, playerID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "relay."+event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("fpsnet.event", event),
			attribute.String("fpsnet.player_id", playerID),
		),
	)
}
