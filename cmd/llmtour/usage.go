package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/randalmurphal/llmtour/pkg/observability"
)

// usageMeter collects model-call metrics in memory for --usage.
type usageMeter struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	recorder observability.MetricsRecorder
}

func newUsageMeter() *usageMeter {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return &usageMeter{
		reader:   reader,
		provider: provider,
		recorder: observability.NewMetricsRecorderWithMeter(provider.Meter("llmtour")),
	}
}

// usage totals.
type usage struct {
	calls  int64
	errors int64
	input  int64
	output int64
}

func (m *usageMeter) collect(ctx context.Context) (usage, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return usage{}, fmt.Errorf("collect metrics: %w", err)
	}

	var u usage
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch metric.Name {
				case observability.MetricLLMCalls:
					u.calls += dp.Value
				case observability.MetricLLMErrors:
					u.errors += dp.Value
				case observability.MetricLLMTokens:
					dir, _ := dp.Attributes.Value(attribute.Key("direction"))
					if dir.AsString() == "input" {
						u.input += dp.Value
					} else {
						u.output += dp.Value
					}
				}
			}
		}
	}
	return u, nil
}

func (m *usageMeter) print(ctx context.Context, w io.Writer) error {
	u, err := m.collect(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\nmodel calls: %d (errors: %d)\ntokens: %d input, %d output, %d total\n",
		ruleStyle.Render(separator), u.calls, u.errors, u.input, u.output, u.input+u.output)
	return err
}

func (m *usageMeter) shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
