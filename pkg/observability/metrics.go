package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName scopes every tracer and meter in this module.
const instrumentationName = "github.com/randalmurphal/llmtour"

// MetricsRecorder records graph and model metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records a graph run completion.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)

	// RecordLLMCall records one chat model call and its token usage.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	graphRuns      metric.Int64Counter
	graphLatency   metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	llmCalls       metric.Int64Counter
	llmLatency     metric.Float64Histogram
	llmErrors      metric.Int64Counter
	llmTokens      metric.Int64Counter
}

// Metric names.
const (
	MetricNodeExecutions = "llmtour.node.executions"
	MetricNodeLatency    = "llmtour.node.latency_ms"
	MetricNodeErrors     = "llmtour.node.errors"
	MetricGraphRuns      = "llmtour.graph.runs"
	MetricGraphLatency   = "llmtour.graph.latency_ms"
	MetricCheckpointSize = "llmtour.checkpoint.size_bytes"
	MetricLLMCalls       = "llmtour.llm.calls"
	MetricLLMLatency     = "llmtour.llm.latency_ms"
	MetricLLMErrors      = "llmtour.llm.errors"
	MetricLLMTokens      = "llmtour.llm.tokens"
)

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	m := &otelMetrics{}
	var err error

	if m.nodeExecutions, err = meter.Int64Counter(MetricNodeExecutions,
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram(MetricNodeLatency,
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter(MetricNodeErrors,
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}
	if m.graphRuns, err = meter.Int64Counter(MetricGraphRuns,
		metric.WithDescription("Number of graph runs"),
	); err != nil {
		return nil, err
	}
	if m.graphLatency, err = meter.Float64Histogram(MetricGraphLatency,
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram(MetricCheckpointSize,
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.llmCalls, err = meter.Int64Counter(MetricLLMCalls,
		metric.WithDescription("Number of chat model calls"),
	); err != nil {
		return nil, err
	}
	if m.llmLatency, err = meter.Float64Histogram(MetricLLMLatency,
		metric.WithDescription("Chat model call latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.llmErrors, err = meter.Int64Counter(MetricLLMErrors,
		metric.WithDescription("Number of failed chat model calls"),
	); err != nil {
		return nil, err
	}
	if m.llmTokens, err = meter.Int64Counter(MetricLLMTokens,
		metric.WithDescription("Tokens consumed by chat model calls, by direction"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder on the global meter provider.
// If instrument creation fails, returns a no-op recorder.
//
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	return NewMetricsRecorderWithMeter(otel.Meter(instrumentationName))
}

// NewMetricsRecorderWithMeter returns a MetricsRecorder on the given meter.
func NewMetricsRecorderWithMeter(meter metric.Meter) MetricsRecorder {
	m, err := newOtelMetrics(meter)
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

func (m *otelMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))

	m.llmCalls.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
		return
	}
	m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
		attribute.String("model", model), attribute.String("direction", "input")))
	m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
		attribute.String("model", model), attribute.String("direction", "output")))
}
