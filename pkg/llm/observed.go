package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/llmtour/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ModelNamer is implemented by clients that know their default model.
type ModelNamer interface {
	Model() string
}

// ObservedClient wraps a Client with spans, metrics and logs per call.
type ObservedClient struct {
	inner   Client
	metrics observability.MetricsRecorder
	logger  *slog.Logger
	model   string
}

// ObserveOption configures an ObservedClient.
type ObserveOption func(*ObservedClient)

// WithMetricsRecorder records call counts, latency and token usage.
func WithMetricsRecorder(m observability.MetricsRecorder) ObserveOption {
	return func(c *ObservedClient) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCallLogger logs each call.
func WithCallLogger(logger *slog.Logger) ObserveOption {
	return func(c *ObservedClient) {
		c.logger = logger
	}
}

// Observe wraps inner. Each Complete and Stream runs in an "llm" span
// that is a child of any span on the caller's context.
func Observe(inner Client, opts ...ObserveOption) *ObservedClient {
	c := &ObservedClient{
		inner:   inner,
		metrics: observability.NoopMetrics{},
	}
	if n, ok := inner.(ModelNamer); ok {
		c.model = n.Model()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Unwrap returns the wrapped client.
func (c *ObservedClient) Unwrap() Client {
	return c.inner
}

// Complete implements Client.
func (c *ObservedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := c.modelFor(req)
	ctx, span := observability.StartLLMSpan(ctx, "chat "+model, model)

	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	duration := time.Since(start)

	var usage TokenUsage
	if resp != nil {
		usage = resp.Usage
	}
	c.finish(ctx, span, model, duration, usage, err)
	return resp, err
}

// Stream implements Client. Usage is recorded from the final chunk.
func (c *ObservedClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	model := c.modelFor(req)
	ctx, span := observability.StartLLMSpan(ctx, "chat "+model, model)
	span.SetAttributes(attribute.Bool("llm.stream", true))

	start := time.Now()
	in, err := c.inner.Stream(ctx, req)
	if err != nil {
		c.finish(ctx, span, model, time.Since(start), TokenUsage{}, err)
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		var usage TokenUsage
		var streamErr error
		for chunk := range in {
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			if chunk.Error != nil {
				streamErr = chunk.Error
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				streamErr = ctx.Err()
				for range in {
				}
				c.finish(ctx, span, model, time.Since(start), usage, streamErr)
				return
			}
		}
		c.finish(ctx, span, model, time.Since(start), usage, streamErr)
	}()
	return out, nil
}

func (c *ObservedClient) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	if c.model != "" {
		return c.model
	}
	return "unknown"
}

func (c *ObservedClient) finish(ctx context.Context, span trace.Span, model string, d time.Duration, usage TokenUsage, err error) {
	span.SetAttributes(
		attribute.Int(observability.AttrInputTokens, usage.InputTokens),
		attribute.Int(observability.AttrOutputTokens, usage.OutputTokens),
	)
	observability.EndSpanWithError(span, err)
	c.metrics.RecordLLMCall(ctx, model, d, usage.InputTokens, usage.OutputTokens, err)
	observability.LogLLMCall(c.logger, model, d, usage.InputTokens, usage.OutputTokens, err)
}
