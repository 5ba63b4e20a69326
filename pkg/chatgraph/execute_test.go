package chatgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_LinearFlow(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddNode("inc3", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", "inc3").
		AddEdge("inc3", END).
		SetEntry("inc1").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Counter{Value: 0})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Value)
}

func TestRun_ConditionalEdge(t *testing.T) {
	router := func(ctx Context, s State) string {
		if s.GoLeft {
			return "left"
		}
		return "right"
	}

	tests := []struct {
		name   string
		goLeft bool
		want   []string
	}{
		{"left", true, []string{"route", "left"}},
		{"right", false, []string{"route", "right"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var executed []string
			compiled, err := NewGraph[State]().
				AddNode("route", makeTrackingNode("route", &executed)).
				AddNode("left", makeTrackingNode("left", &executed)).
				AddNode("right", makeTrackingNode("right", &executed)).
				AddConditionalEdge("route", router).
				AddEdge("left", END).
				AddEdge("right", END).
				SetEntry("route").
				Compile()
			require.NoError(t, err)

			_, err = compiled.Run(testCtx(), State{GoLeft: tt.goLeft})
			require.NoError(t, err)
			assert.Equal(t, tt.want, executed)
		})
	}
}

func TestRun_LoopUntilDone(t *testing.T) {
	counter := func(ctx Context, s State) (State, error) {
		s.Count++
		s.Done = s.Count >= 3
		return s, nil
	}
	router := func(ctx Context, s State) string {
		if s.Done {
			return END
		}
		return "count"
	}

	compiled, err := NewGraph[State]().
		AddNode("count", counter).
		AddConditionalEdge("count", router).
		SetEntry("count").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), State{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
}

func TestRun_MaxIterations(t *testing.T) {
	compiled, err := NewGraph[State]().
		AddNode("spin", passthrough[State]).
		AddConditionalEdge("spin", func(ctx Context, s State) string { return "spin" }).
		SetEntry("spin").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{}, WithMaxIterations(5))

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 5, maxErr.Max)
	assert.Equal(t, "spin", maxErr.LastNodeID)
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestRun_NodeError(t *testing.T) {
	boom := errors.New("model unavailable")
	compiled, err := NewGraph[State]().
		AddNode("model", makeFailingNode(boom)).
		AddEdge("model", END).
		SetEntry("model").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), State{Initial: "kept"})

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "model", nodeErr.NodeID)
	assert.Equal(t, "execute", nodeErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "kept", result.Initial)
}

func TestRun_PanicRecovered(t *testing.T) {
	compiled, err := NewGraph[State]().
		AddNode("model", makePanicNode("nil map")).
		AddEdge("model", END).
		SetEntry("model").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "model", panicErr.NodeID)
	assert.Equal(t, "nil map", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestRun_CancelledBeforeNode(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := compiled.Run(NewContext(ctx), Counter{Value: 7})

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "a", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 7, result.Value)
}

func TestRun_NilContext(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	//nolint:staticcheck // nil context is the case under test
	_, err = compiled.Run(nil, Counter{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRun_RouterErrors(t *testing.T) {
	tests := []struct {
		name    string
		returns string
		wantErr error
	}{
		{"empty", "", ErrInvalidRouterResult},
		{"unknown", "nowhere", ErrRouterTargetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := NewGraph[State]().
				AddNode("route", passthrough[State]).
				AddConditionalEdge("route", func(ctx Context, s State) string { return tt.returns }).
				SetEntry("route").
				Compile()
			require.NoError(t, err)

			_, err = compiled.Run(testCtx(), State{})

			var routerErr *RouterError
			require.ErrorAs(t, err, &routerErr)
			assert.Equal(t, "route", routerErr.FromNode)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRun_ContextServices(t *testing.T) {
	client := llm.NewMockClient("hello")
	var gotNode, gotRun string
	var gotLLM llm.Client

	node := func(ctx Context, s State) (State, error) {
		gotNode = ctx.NodeID()
		gotRun = ctx.RunID()
		gotLLM = ctx.LLM()
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("model", node).
		AddEdge("model", END).
		SetEntry("model").
		Compile()
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithLLM(client), WithContextRunID("run-42"))
	_, err = compiled.Run(ctx, State{})
	require.NoError(t, err)

	assert.Equal(t, "model", gotNode)
	assert.Equal(t, "run-42", gotRun)
	assert.Same(t, client, gotLLM)
}

func TestRun_WithRunIDOverridesContext(t *testing.T) {
	var gotRun string
	node := func(ctx Context, s State) (State, error) {
		gotRun = ctx.RunID()
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("model", node).
		AddEdge("model", END).
		SetEntry("model").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background(), WithContextRunID("ctx-run")), State{}, WithRunID("opt-run"))
	require.NoError(t, err)
	assert.Equal(t, "opt-run", gotRun)
}
