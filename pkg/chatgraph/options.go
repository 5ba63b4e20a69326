package chatgraph

import (
	"log/slog"

	"github.com/randalmurphal/llmtour/pkg/observability"
)

// runConfig holds configuration for one execution.
type runConfig struct {
	maxIterations int
	threadID      string
	runID         string

	// sequence is the last checkpoint sequence seen on the thread.
	sequence int

	checkpointFailureFatal bool

	logger         *slog.Logger
	tracingEnabled bool
	spans          observability.SpanManager
	metrics        observability.MetricsRecorder
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations:          1000,
		checkpointFailureFatal: true,
		spans:                  observability.NoopSpanManager{},
		metrics:                observability.NoopMetrics{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000
//
// If a graph exceeds this limit, Run returns a *MaxIterationsError.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithThreadID selects the conversation thread. Required by Invoke when the
// graph has a checkpointer.
//
// Example:
//
//	out, err := app.Invoke(ctx, input, chatgraph.WithThreadID("abc123"))
func WithThreadID(id string) RunOption {
	return func(c *runConfig) {
		c.threadID = id
	}
}

// WithRunID sets the run identifier recorded in checkpoints and logs.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithCheckpointFailureFatal controls whether a failed checkpoint save
// aborts the run. Default: true. When false, failures are logged.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithObservabilityLogger sets the logger for run and node lifecycle events.
// Default: the Context's logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithTracing enables OpenTelemetry spans for the run and each node.
// Spans go to the global tracer provider (see observability.Setup).
func WithTracing() RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = true
		c.spans = observability.NewSpanManager()
	}
}

// WithMetrics enables OpenTelemetry metrics for runs, nodes and checkpoints.
func WithMetrics() RunOption {
	return func(c *runConfig) {
		c.metrics = observability.NewMetricsRecorder()
	}
}

// WithMetricsRecorder records run metrics through m, e.g. a recorder on a
// private meter provider.
func WithMetricsRecorder(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}
