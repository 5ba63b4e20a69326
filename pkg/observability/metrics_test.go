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

func newTestRecorder(t *testing.T) (MetricsRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return NewMetricsRecorderWithMeter(provider.Meter("test")), reader
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

func sumByAttr(t *testing.T, m *metricdata.Metrics, key attribute.Key, value string) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder_NotNoop(t *testing.T) {
	recorder, _ := newTestRecorder(t)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordNodeExecution(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.RecordNodeExecution(ctx, "model", 10*time.Millisecond, nil)
	recorder.RecordNodeExecution(ctx, "model", 20*time.Millisecond, errors.New("boom"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumByAttr(t, findMetric(rm, MetricNodeExecutions), "node_id", "model"))
	assert.Equal(t, int64(1), sumByAttr(t, findMetric(rm, MetricNodeErrors), "node_id", "model"))
	assert.NotNil(t, findMetric(rm, MetricNodeLatency))
}

func TestRecordGraphRunAndCheckpoint(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.RecordGraphRun(ctx, true, time.Millisecond)
	recorder.RecordCheckpoint(ctx, "model", 512)

	rm := collectMetrics(t, reader)
	assert.NotNil(t, findMetric(rm, MetricGraphRuns))
	assert.NotNil(t, findMetric(rm, MetricGraphLatency))

	size := findMetric(rm, MetricCheckpointSize)
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(512), hist.DataPoints[0].Sum)
}

func TestRecordLLMCall(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.RecordLLMCall(ctx, "gpt-4o-mini", time.Second, 27, 9, nil)
	recorder.RecordLLMCall(ctx, "gpt-4o-mini", time.Second, 3, 4, nil)
	recorder.RecordLLMCall(ctx, "gpt-4o-mini", time.Second, 0, 0, errors.New("429"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(3), sumByAttr(t, findMetric(rm, MetricLLMCalls), "model", "gpt-4o-mini"))
	assert.Equal(t, int64(1), sumByAttr(t, findMetric(rm, MetricLLMErrors), "model", "gpt-4o-mini"))

	tokens := findMetric(rm, MetricLLMTokens)
	assert.Equal(t, int64(30), sumByAttr(t, tokens, "direction", "input"))
	assert.Equal(t, int64(13), sumByAttr(t, tokens, "direction", "output"))
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	assert.NotPanics(t, func() {
		ctx := context.Background()
		m.RecordNodeExecution(ctx, "n", time.Second, errors.New("x"))
		m.RecordGraphRun(ctx, false, time.Second)
		m.RecordCheckpoint(ctx, "n", 1)
		m.RecordLLMCall(ctx, "m", time.Second, 1, 1, nil)
	})
}
