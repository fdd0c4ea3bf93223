package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records flowrun metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordRun records a finished run.
	RecordRun(ctx context.Context, outcome string, steps int, duration time.Duration)

	// RecordSinkFailure records a failed persist or broadcast for an event.
	RecordSinkFailure(ctx context.Context, sink, eventType string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	runSteps       metric.Int64Histogram
	sinkFailures   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the OTel instruments on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("flowrun"))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	nodeExecutions, err := meter.Int64Counter("flowrun.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("flowrun.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("flowrun.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("flowrun.runs",
		metric.WithDescription("Number of finished runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("flowrun.run.latency_ms",
		metric.WithDescription("Run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	runSteps, err := meter.Int64Histogram("flowrun.run.steps",
		metric.WithDescription("Steps executed per run"),
	)
	if err != nil {
		return nil, err
	}

	sinkFailures, err := meter.Int64Counter("flowrun.sink.failures",
		metric.WithDescription("Number of failed persist or broadcast attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		runs:           runs,
		runLatency:     runLatency,
		runSteps:       runSteps,
		sinkFailures:   sinkFailures,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFromMeter builds a recorder on an explicit meter
// instead of the global provider.
func NewMetricsRecorderFromMeter(meter metric.Meter) (MetricsRecorder, error) {
	m, err := newOtelMetrics(meter)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)

	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordRun records a finished run.
func (m *otelMetrics) RecordRun(ctx context.Context, outcome string, steps int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.runSteps.Record(ctx, int64(steps), attrs)
}

// RecordSinkFailure records a failed sink write.
func (m *otelMetrics) RecordSinkFailure(ctx context.Context, sink, eventType string) {
	m.sinkFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.String("event", eventType),
	))
}
