package chatgraph

// START is the identifier of the virtual entry step. Invoke records the
// merged input under this node ID before any real node runs.
const START = "__start__"

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation.
//
// Example:
//
//	func callModel(ctx chatgraph.Context, s chatgraph.MessagesState) (chatgraph.MessagesState, error) {
//	    resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{Messages: s.Messages})
//	    if err != nil {
//	        return s, err
//	    }
//	    s.Messages = append(s.Messages, resp.Message())
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime state.
//
// The router should return a valid node ID or chatgraph.END.
// Returning an empty string or an unknown node ID will cause a runtime error.
type RouterFunc[S any] func(ctx Context, state S) string

// Reducer merges an update into the current thread state.
// Invoke applies it to combine a thread's stored state with new input.
type Reducer[S any] func(current, update S) S
