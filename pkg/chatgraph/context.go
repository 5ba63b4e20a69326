package chatgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/llmtour/pkg/llm"
)

// Context provides execution context to nodes.
// It extends context.Context with the services a chat node needs.
//
// Context is immutable after creation. The executor derives a context
// per node with the node ID set and the logger enriched.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run, thread and node.
	// Never returns nil.
	Logger() *slog.Logger

	// LLM returns the chat model client, or nil if not configured.
	LLM() llm.Client

	// ThreadID returns the conversation thread, or "" for a thread-less run.
	ThreadID() string

	// RunID returns the unique identifier for this execution run.
	RunID() string

	// NodeID returns the current node being executed.
	NodeID() string
}

type executionContext struct {
	context.Context

	logger    *slog.Logger
	llmClient llm.Client
	threadID  string
	runID     string
	nodeID    string
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) LLM() llm.Client { return c.llmClient }
func (c *executionContext) ThreadID() string { return c.threadID }
func (c *executionContext) RunID() string { return c.runID }
func (c *executionContext) NodeID() string { return c.nodeID }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLLM sets the chat model client for the context.
func WithLLM(client llm.Client) ContextOption {
	return func(c *executionContext) {
		c.llmClient = client
	}
}

// WithContextRunID sets the run identifier. If not set, a UUID is generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := chatgraph.NewContext(context.Background(),
//	    chatgraph.WithLLM(client),
//	    chatgraph.WithLogger(logger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// asContext returns ctx as a Context, wrapping plain contexts.
func asContext(ctx context.Context) Context {
	if c, ok := ctx.(Context); ok {
		return c
	}
	return NewContext(ctx)
}

// forRun derives the context for one run with the thread ID attached.
// A non-empty runID overrides the one carried by ctx.
func forRun(ctx Context, parent context.Context, threadID, runID string) *executionContext {
	ec := &executionContext{
		Context:   parent,
		logger:    ctx.Logger(),
		llmClient: ctx.LLM(),
		threadID:  threadID,
		runID:     ctx.RunID(),
	}
	if runID != "" {
		ec.runID = runID
	}
	return ec
}

// withParent returns a copy carrying a different parent context.
func (c *executionContext) withParent(parent context.Context) *executionContext {
	cp := *c
	cp.Context = parent
	return &cp
}

// withNodeID returns a new context with the given node ID set.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	cp := *c
	cp.nodeID = nodeID
	cp.logger = c.logger.With("run_id", c.runID, "thread_id", c.threadID, "node_id", nodeID)
	return &cp
}
