package chatgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
	"github.com/randalmurphal/llmtour/pkg/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run executes the graph with the given initial state.
// Returns the final state and any error encountered.
//
// On success, returns the state after the last node executed before END.
// On error, returns the state at the point of failure.
//
// Run does not read thread history. Use Invoke to continue a conversation.
// When WithThreadID is given and the graph has a checkpointer, Run still
// records one checkpoint per node on that thread.
//
// Example:
//
//	ctx := chatgraph.NewContext(context.Background(), chatgraph.WithLLM(client))
//	result, err := compiled.Run(ctx, initialState)
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := cg.newRunConfig(ctx, opts)
	if err := cg.loadSequence(&cfg); err != nil {
		return state, err
	}

	return cg.execute(ctx, state, cg.entryPoint, "", &cfg)
}

func (cg *CompiledGraph[S]) newRunConfig(ctx Context, opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = ctx.Logger()
	}
	return cfg
}

// loadSequence positions cfg after the thread's newest checkpoint.
func (cg *CompiledGraph[S]) loadSequence(cfg *runConfig) error {
	if cg.checkpointer == nil || cfg.threadID == "" {
		return nil
	}
	info, err := checkpoint.Latest(cg.checkpointer, cfg.threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load thread %s: %w", cfg.threadID, err)
	}
	cfg.sequence = info.Sequence
	return nil
}

// execute wraps a run with run-level logging, span and metrics.
func (cg *CompiledGraph[S]) execute(ctx Context, state S, startNode, prevNode string, cfg *runConfig) (result S, runErr error) {
	ec := forRun(ctx, ctx, cfg.threadID, cfg.runID)
	cfg.runID = ec.runID

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, ec.runID)

	if cfg.tracingEnabled {
		spanCtx, runSpan := cfg.spans.StartRunSpan(ctx, cg.name, ec.runID)
		ec = ec.withParent(spanCtx)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var nodeCount int
	result, nodeCount, runErr = cg.runLoop(ec, state, startNode, prevNode, cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	cfg.metrics.RecordGraphRun(ec, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, ec.runID, runErr, durationMs, lastNodeOf(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, ec.runID, durationMs, nodeCount)
	}

	return result, runErr
}

// runLoop walks the graph from startNode until END.
// Returns the final state, the number of nodes executed, and any error.
func (cg *CompiledGraph[S]) runLoop(ec *executionContext, state S, startNode, prevNode string, cfg *runConfig) (S, int, error) {
	current := startNode
	iterations := 0
	nodeCount := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, nodeCount, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		select {
		case <-ec.Done():
			return state, nodeCount, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  ec.Err(),
			}
		default:
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeCtx := ec
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			var spanCtx context.Context
			spanCtx, nodeSpan = cfg.spans.StartNodeSpan(ec, current)
			nodeCtx = ec.withParent(spanCtx)
		}

		nodeStart := time.Now()
		var nodeErr error
		state, nodeErr = cg.executeNode(nodeCtx, current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeCtx, current, nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Milliseconds()))
		nodeCount++

		next, err := cg.nextNode(ec, state, current)
		if err != nil {
			return state, nodeCount, err
		}

		if err := cg.saveCheckpoint(ec, cfg, current, prevNode, state, next); err != nil {
			return state, nodeCount, err
		}

		prevNode = current
		current = next
	}

	return state, nodeCount, nil
}

// saveCheckpoint persists state after a step. It is a no-op for
// thread-less runs and graphs without a checkpointer.
func (cg *CompiledGraph[S]) saveCheckpoint(ec *executionContext, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string) error {
	if cg.checkpointer == nil || cfg.threadID == "" {
		return nil
	}

	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{ThreadID: cfg.threadID, NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", fmt.Errorf("%w: %v", ErrSerializeState, err))
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.threadID, cfg.runID, nodeID, cfg.sequence, stateBytes, nextNode).
		WithPrevNode(prevNodeID)

	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cg.checkpointer.Save(cfg.threadID, nodeID, data); err != nil {
		return fail("save", err)
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ec, nodeID, int64(len(data)))
	return nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S]) executeNode(ec *executionContext, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	nodeCtx := ec.withNodeID(nodeID)

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Conditional edges take precedence over simple edges.
func (cg *CompiledGraph[S]) nextNode(ec *executionContext, state S, current string) (string, error) {
	if router, exists := cg.getRouter(current); exists {
		next := router(ec.withNodeID(current), state)

		if next == "" {
			return "", &RouterError{FromNode: current, Returned: next, Err: ErrInvalidRouterResult}
		}
		if next != END && !cg.HasNode(next) {
			return "", &RouterError{FromNode: current, Returned: next, Err: ErrRouterTargetNotFound}
		}
		return next, nil
	}

	edges := cg.getEdges(current)
	if len(edges) == 0 {
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}

	// Multiple simple edges from one node are not fanned out; the first wins.
	return edges[0], nil
}
