package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "flowrun"

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span for an entire run.
	StartRunSpan(ctx context.Context, graphID, runID string) (context.Context, trace.Span)

	// StartNodeSpan starts a span for one step. It should be a child of the run span.
	StartNodeSpan(ctx context.Context, nodeID string, step int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
// The tracer is resolved per span so provider changes take effect.
type otelSpanManager struct {
	provider trace.TracerProvider
}

// NewSpanManager returns a SpanManager that uses the global OTel tracer provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// NewSpanManagerWithProvider returns a SpanManager bound to a specific provider.
func NewSpanManagerWithProvider(tp trace.TracerProvider) SpanManager {
	return &otelSpanManager{provider: tp}
}

func (m *otelSpanManager) tracer() trace.Tracer {
	if m.provider != nil {
		return m.provider.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// StartRunSpan starts a span for the entire run.
func (m *otelSpanManager) StartRunSpan(ctx context.Context, graphID, runID string) (context.Context, trace.Span) {
	return m.tracer().Start(ctx, "flowrun.run",
		trace.WithAttributes(
			attribute.String("graph.id", graphID),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartNodeSpan starts a span for a node execution.
func (m *otelSpanManager) StartNodeSpan(ctx context.Context, nodeID string, step int) (context.Context, trace.Span) {
	return m.tracer().Start(ctx, "flowrun.node."+nodeID,
		trace.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.Int("step", step),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
