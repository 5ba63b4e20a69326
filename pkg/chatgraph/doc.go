// Package chatgraph runs conversational workflows as small state graphs.
//
// A graph is a set of named nodes joined by edges. Each node receives the
// current state and returns the next one. Compiling a graph validates its
// structure and yields an immutable CompiledGraph that is safe to share.
//
// # Threads
//
// A graph compiled WithCheckpointer remembers conversations. Each Invoke
// names a thread; the graph loads that thread's latest state, merges the new
// input into it with the configured reducer, and checkpoints after every
// step. Two threads never share state.
//
//	store := checkpoint.NewMemoryStore()
//	app, err := chatgraph.NewMessagesGraph().
//	    AddNode("model", callModel).
//	    AddEdge(chatgraph.START, "model").
//	    AddEdge("model", chatgraph.END).
//	    Compile(chatgraph.WithCheckpointer(store), chatgraph.WithMessagesReducer())
//
//	ctx := chatgraph.NewContext(context.Background(), chatgraph.WithLLM(client))
//	out, err := app.Invoke(ctx, chatgraph.MessagesState{
//	    Messages: []llm.Message{llm.Human("Hi! I'm Bob.")},
//	}, chatgraph.WithThreadID("abc123"))
//
// # Errors
//
// Node failures come back as *NodeError, panics as *PanicError, and
// cancellation between nodes as *CancellationError. All support errors.Is
// and errors.As. On error the returned state is the state at the failure.
//
// # Observability
//
// Lifecycle events are logged through the Context's slog logger. WithTracing
// and WithMetrics emit OpenTelemetry spans and metrics through the global
// providers.
package chatgraph
