package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) (MetricsRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	recorder, err := NewMetricsRecorderFromMeter(provider.Meter("flowrun-test"))
	require.NoError(t, err)
	return recorder, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordNodeExecution(t *testing.T) {
	recorder, reader := setupMetricsTest(t)
	ctx := context.Background()

	recorder.RecordNodeExecution(ctx, "split", 10*time.Millisecond, nil)
	recorder.RecordNodeExecution(ctx, "split", 20*time.Millisecond, errors.New("boom"))
	recorder.RecordNodeExecution(ctx, "merge", time.Millisecond, nil)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "flowrun.node.executions"), "node_id", "split"))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "flowrun.node.executions"), "node_id", "merge"))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "flowrun.node.errors"), "node_id", "split"))
	assert.NotNil(t, findMetric(rm, "flowrun.node.latency_ms"))
}

func TestRecordRun(t *testing.T) {
	recorder, reader := setupMetricsTest(t)
	ctx := context.Background()

	recorder.RecordRun(ctx, "completed", 4, 5*time.Millisecond)
	recorder.RecordRun(ctx, "step_limit", 500, time.Second)
	recorder.RecordRun(ctx, "completed", 2, time.Millisecond)

	rm := collectMetrics(t, reader)
	runs := findMetric(rm, "flowrun.runs")
	assert.Equal(t, int64(2), sumValue(t, runs, "outcome", "completed"))
	assert.Equal(t, int64(1), sumValue(t, runs, "outcome", "step_limit"))

	steps := findMetric(rm, "flowrun.run.steps")
	require.NotNil(t, steps)
	hist, ok := steps.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestRecordSinkFailure(t *testing.T) {
	recorder, reader := setupMetricsTest(t)

	recorder.RecordSinkFailure(context.Background(), "persist", "node_end")
	recorder.RecordSinkFailure(context.Background(), "broadcast", "node_end")

	rm := collectMetrics(t, reader)
	failures := findMetric(rm, "flowrun.sink.failures")
	assert.Equal(t, int64(1), sumValue(t, failures, "sink", "persist"))
	assert.Equal(t, int64(1), sumValue(t, failures, "sink", "broadcast"))
}

func TestNewMetricsRecorder_Global(t *testing.T) {
	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	assert.NotPanics(t, func() {
		recorder.RecordRun(context.Background(), "completed", 1, time.Millisecond)
	})
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordNodeExecution(context.Background(), "n", time.Second, errors.New("x"))
		m.RecordRun(context.Background(), "completed", 1, time.Second)
		m.RecordSinkFailure(context.Background(), "persist", "node_end")
	})
}
