package chatgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
)

// StateSnapshot is a thread's state as of one checkpoint.
type StateSnapshot[S any] struct {
	ThreadID string
	// NodeID is the step that produced the state (START for merged input).
	NodeID string
	// Next is the node the run would continue with, END when complete.
	Next      string
	Sequence  int
	RunID     string
	CreatedAt time.Time
	Values    S
}

// Invoke runs the graph as one turn of a conversation.
//
// With a checkpointer, Invoke requires WithThreadID. It loads the thread's
// latest state, merges input into it with the reducer, records the merged
// state as a START checkpoint, then runs from the entry point saving one
// checkpoint per node. Threads never see each other's state.
//
// Without a checkpointer, Invoke is Run with input as the initial state.
//
// Example:
//
//	out, err := app.Invoke(ctx, chatgraph.MessagesState{
//	    Messages: []llm.Message{llm.Human("Hi! I'm Bob.")},
//	}, chatgraph.WithThreadID("abc123"))
func (cg *CompiledGraph[S]) Invoke(ctx context.Context, input S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return input, ErrNilContext
	}
	fgCtx := asContext(ctx)

	cfg := cg.newRunConfig(fgCtx, opts)
	if cg.checkpointer == nil {
		return cg.execute(fgCtx, input, cg.entryPoint, "", &cfg)
	}
	if cfg.threadID == "" {
		return input, ErrThreadIDRequired
	}

	state := input
	prev, err := cg.latest(cfg.threadID)
	switch {
	case errors.Is(err, ErrNoCheckpoints):
	case err != nil:
		return input, err
	default:
		cfg.sequence = prev.Sequence
		state = cg.merge(prev.Values, input)
	}

	if cfg.runID == "" {
		cfg.runID = fgCtx.RunID()
	}
	if err := cg.saveCheckpoint(forRun(fgCtx, fgCtx, cfg.threadID, cfg.runID), &cfg, START, "", state, cg.entryPoint); err != nil {
		return state, err
	}

	return cg.execute(fgCtx, state, cg.entryPoint, START, &cfg)
}

func (cg *CompiledGraph[S]) merge(current, update S) S {
	if cg.reducer == nil {
		return update
	}
	return cg.reducer(current, update)
}

// GetState returns the thread's latest state.
// Returns an error wrapping ErrNoCheckpoints for an unknown thread.
func (cg *CompiledGraph[S]) GetState(ctx context.Context, threadID string) (StateSnapshot[S], error) {
	if err := ctx.Err(); err != nil {
		return StateSnapshot[S]{}, err
	}
	return cg.latest(threadID)
}

// History returns every checkpoint on the thread, oldest first.
// Steps that were re-run by later turns appear once, at their newest position.
func (cg *CompiledGraph[S]) History(threadID string) ([]StateSnapshot[S], error) {
	if cg.checkpointer == nil {
		return nil, ErrNoCheckpointer
	}

	infos, err := cg.checkpointer.List(threadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	snapshots := make([]StateSnapshot[S], 0, len(infos))
	for _, info := range infos {
		snap, err := cg.load(threadID, info.NodeID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// DeleteThread forgets the thread. Deleting an unknown thread is not an error.
func (cg *CompiledGraph[S]) DeleteThread(threadID string) error {
	if cg.checkpointer == nil {
		return ErrNoCheckpointer
	}
	return cg.checkpointer.DeleteThread(threadID)
}

// Resume continues the thread from its latest checkpoint's next node.
// A thread whose last step reached END is returned as-is.
//
// Example:
//
//	// Process crashed after START was recorded but before "model" finished.
//	result, err := app.Resume(ctx, "abc123")
func (cg *CompiledGraph[S]) Resume(ctx context.Context, threadID string, opts ...RunOption) (S, error) {
	var zero S
	if ctx == nil {
		return zero, ErrNilContext
	}
	fgCtx := asContext(ctx)

	snap, err := cg.latest(threadID)
	if err != nil {
		return zero, err
	}
	if snap.Next == END {
		return snap.Values, nil
	}
	if !cg.HasNode(snap.Next) {
		return snap.Values, fmt.Errorf("%w: %s", ErrInvalidResumeNode, snap.Next)
	}

	cfg := cg.newRunConfig(fgCtx, opts)
	cfg.threadID = threadID
	cfg.sequence = snap.Sequence

	return cg.execute(fgCtx, snap.Values, snap.Next, snap.NodeID, &cfg)
}

// latest loads the newest checkpoint on a thread.
func (cg *CompiledGraph[S]) latest(threadID string) (StateSnapshot[S], error) {
	if cg.checkpointer == nil {
		return StateSnapshot[S]{}, ErrNoCheckpointer
	}

	info, err := checkpoint.Latest(cg.checkpointer, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return StateSnapshot[S]{}, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
	}
	if err != nil {
		return StateSnapshot[S]{}, fmt.Errorf("list checkpoints: %w", err)
	}

	return cg.load(threadID, info.NodeID)
}

func (cg *CompiledGraph[S]) load(threadID, nodeID string) (StateSnapshot[S], error) {
	data, err := cg.checkpointer.Load(threadID, nodeID)
	if err != nil {
		return StateSnapshot[S]{}, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return StateSnapshot[S]{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if cp.Version != checkpoint.Version {
		return StateSnapshot[S]{}, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return StateSnapshot[S]{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	return StateSnapshot[S]{
		ThreadID:  cp.ThreadID,
		NodeID:    cp.NodeID,
		Next:      cp.NextNode,
		Sequence:  cp.Sequence,
		RunID:     cp.RunID,
		CreatedAt: cp.Timestamp,
		Values:    state,
	}, nil
}
