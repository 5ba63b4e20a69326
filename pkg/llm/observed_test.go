package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func newRecorder(t *testing.T) (observability.MetricsRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return observability.NewMetricsRecorderWithMeter(provider.Meter("test")), reader
}

func tokenTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != observability.MetricLLMTokens {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestObserve_Complete(t *testing.T) {
	exporter := setupTracing(t)
	recorder, reader := newRecorder(t)

	mock := llm.NewMockClient("Hallo, hoe gaat het?").WithModel("qwen-plus")
	client := llm.Observe(mock, llm.WithMetricsRecorder(recorder))

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.Human("hi, how are you doing today?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo, hoe gaat het?", resp.Content)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "chat qwen-plus", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	want := int64(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	assert.Equal(t, want, tokenTotal(t, reader))
	assert.Same(t, mock, client.Unwrap())
}

func TestObserve_RequestModelWins(t *testing.T) {
	exporter := setupTracing(t)
	client := llm.Observe(llm.NewMockClient("ok"))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "chat gpt-4o-mini", exporter.GetSpans()[0].Name)
}

func TestObserve_Error(t *testing.T) {
	exporter := setupTracing(t)
	boom := errors.New("429 rate limit")
	client := llm.Observe(llm.NewMockClient("").WithError(boom))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, codes.Error, exporter.GetSpans()[0].Status.Code)
}

func TestObserve_Stream(t *testing.T) {
	exporter := setupTracing(t)
	recorder, reader := newRecorder(t)
	client := llm.Observe(llm.NewMockClient("Hallo daar vriend"), llm.WithMetricsRecorder(recorder))

	ch, err := client.Stream(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.Human("hello there friend")},
	})
	require.NoError(t, err)

	var text string
	var usage *llm.TokenUsage
	for chunk := range ch {
		text += chunk.Content
		if chunk.Done {
			usage = chunk.Usage
		}
	}
	assert.Equal(t, "Hallo daar vriend", text)
	require.NotNil(t, usage)

	require.Len(t, exporter.GetSpans(), 1)
	assert.Equal(t, int64(usage.InputTokens+usage.OutputTokens), tokenTotal(t, reader))
}
