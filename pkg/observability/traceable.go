package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunType classifies a traced step the way the trace backend groups runs.
type RunType string

// Run types.
const (
	RunTypeChain     RunType = "chain"
	RunTypeLLM       RunType = "llm"
	RunTypeRetriever RunType = "retriever"
	RunTypeTool      RunType = "tool"
)

// Span attribute keys understood by the LangSmith OTel endpoint.
const (
	AttrSpanKind       = "langsmith.span.kind"
	AttrMetadataPrefix = "langsmith.metadata."
	AttrInput          = "input.value"
	AttrOutput         = "output.value"
	AttrModel          = "gen_ai.request.model"
	AttrInputTokens    = "gen_ai.usage.input_tokens"
	AttrOutputTokens   = "gen_ai.usage.output_tokens"
)

// DefaultMaxPayload bounds recorded inputs and outputs, in bytes.
const DefaultMaxPayload = 8 << 10

type traceConfig struct {
	runType    RunType
	metadata   map[string]string
	maxPayload int
	recordIO   bool
}

// TraceOption configures Traceable.
type TraceOption func(*traceConfig)

// WithRunType sets the run type. Default: RunTypeChain.
func WithRunType(rt RunType) TraceOption {
	return func(c *traceConfig) {
		c.runType = rt
	}
}

// WithMetadata attaches a metadata key/value to every span of the step.
func WithMetadata(key, value string) TraceOption {
	return func(c *traceConfig) {
		if c.metadata == nil {
			c.metadata = make(map[string]string)
		}
		c.metadata[key] = value
	}
}

// WithMaxPayload caps the recorded size of inputs and outputs.
func WithMaxPayload(n int) TraceOption {
	return func(c *traceConfig) {
		if n > 0 {
			c.maxPayload = n
		}
	}
}

// WithoutIO stops inputs and outputs from being recorded.
func WithoutIO() TraceOption {
	return func(c *traceConfig) {
		c.recordIO = false
	}
}

// Traceable wraps fn so each call runs inside a span named name.
// The span records the JSON-encoded input and output, the run type and
// metadata, and an error status when fn fails. Calls made through the
// context fn receives become child spans.
//
// Example:
//
//	retrieve := observability.Traceable("retrieve_documents", p.retrieve,
//	    observability.WithRunType(observability.RunTypeRetriever))
//	docs, err := retrieve(ctx, question)
func Traceable[In, Out any](name string, fn func(context.Context, In) (Out, error), opts ...TraceOption) func(context.Context, In) (Out, error) {
	cfg := traceConfig{runType: RunTypeChain, maxPayload: DefaultMaxPayload, recordIO: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	attrs := []attribute.KeyValue{attribute.String(AttrSpanKind, string(cfg.runType))}
	for k, v := range cfg.metadata {
		attrs = append(attrs, attribute.String(AttrMetadataPrefix+k, v))
	}

	return func(ctx context.Context, in In) (out Out, err error) {
		ctx, span := tracer().Start(ctx, name, trace.WithAttributes(attrs...))
		start := time.Now()
		defer func() {
			span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
			EndSpanWithError(span, err)
		}()

		if cfg.recordIO && span.IsRecording() {
			span.SetAttributes(attribute.String(AttrInput, encodePayload(in, cfg.maxPayload)))
		}

		out, err = fn(ctx, in)

		if err == nil && cfg.recordIO && span.IsRecording() {
			span.SetAttributes(attribute.String(AttrOutput, encodePayload(out, cfg.maxPayload)))
		}
		return out, err
	}
}

// encodePayload renders v as JSON, falling back to %v, truncated to limit bytes
// on a rune boundary.
func encodePayload(v any, limit int) string {
	var s string
	if b, err := json.Marshal(v); err == nil {
		s = string(b)
	} else {
		s = fmt.Sprintf("%v", v)
	}
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
