package chatgraph

import (
	"testing"

	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_LinearGraph(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddNode("c", increment).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "a", compiled.EntryPoint())
	assert.Equal(t, []string{"a", "b", "c"}, compiled.NodeIDs())
	assert.Equal(t, []string{"b"}, compiled.Successors("a"))
	assert.Equal(t, []string{"a"}, compiled.Predecessors("b"))
	assert.Nil(t, compiled.Successors(END))
	assert.Equal(t, "chatgraph", compiled.Name())
	assert.Nil(t, compiled.Checkpointer())
}

func TestCompile_Options(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	compiled, err := NewMessagesGraph().
		AddNode("model", passthrough[MessagesState]).
		AddEdge(START, "model").
		AddEdge("model", END).
		Compile(WithName("memory-bot"), WithCheckpointer(store), WithMessagesReducer())

	require.NoError(t, err)
	assert.Equal(t, "memory-bot", compiled.Name())
	assert.Same(t, store, compiled.Checkpointer())
	assert.NotNil(t, compiled.reducer)
}

func TestCompile_ConditionalGraph(t *testing.T) {
	router := func(ctx Context, s State) string {
		if s.GoLeft {
			return "left"
		}
		return "right"
	}

	compiled, err := NewGraph[State]().
		AddNode("route", passthrough[State]).
		AddNode("left", passthrough[State]).
		AddNode("right", passthrough[State]).
		AddConditionalEdge("route", router).
		AddEdge("left", END).
		AddEdge("right", END).
		SetEntry("route").
		Compile()

	require.NoError(t, err)
	assert.True(t, compiled.IsConditional("route"))
	assert.False(t, compiled.IsConditional("left"))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Graph[Counter]
		wantErr error
	}{
		{
			name: "no entry point",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", END)
			},
			wantErr: ErrNoEntryPoint,
		},
		{
			name: "entry not found",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", END).SetEntry("missing")
			},
			wantErr: ErrEntryNotFound,
		},
		{
			name: "edge target missing",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", "ghost").SetEntry("a")
			},
			wantErr: ErrNodeNotFound,
		},
		{
			name: "edge source missing",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddNode("a", increment).
					AddEdge("a", END).
					AddEdge("ghost", "a").
					SetEntry("a")
			},
			wantErr: ErrNodeNotFound,
		},
		{
			name: "no path to end",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddNode("a", increment).
					AddNode("b", increment).
					AddEdge("a", "b").
					AddEdge("b", "a").
					SetEntry("a")
			},
			wantErr: ErrNoPathToEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCompile_MultipleErrorsJoined(t *testing.T) {
	_, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", "ghost").
		AddEdge("phantom", END).
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCompile_ReducerTypeMismatch(t *testing.T) {
	_, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge(START, "a").
		AddEdge("a", END).
		Compile(WithMessagesReducer())

	assert.ErrorIs(t, err, ErrReducerType)
}
