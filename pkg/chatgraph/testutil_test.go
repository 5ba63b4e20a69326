package chatgraph

import (
	"context"
	"strings"

	"github.com/randalmurphal/llmtour/pkg/llm"
)

// Counter is a simple state for testing incrementing.
type Counter struct {
	Value int
}

// State is a richer state for routing scenarios.
type State struct {
	Progress []string
	Initial  string
	Done     bool
	GoLeft   bool
	Count    int
}

func increment(ctx Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

func passthrough[S any](ctx Context, s S) (S, error) {
	return s, nil
}

func makeTrackingNode(name string, tracker *[]string) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		*tracker = append(*tracker, name)
		s.Progress = append(s.Progress, name)
		return s, nil
	}
}

func makeFailingNode(err error) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		return s, err
	}
}

func makePanicNode(value any) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		panic(value)
	}
}

// callModel sends the whole conversation to the context's model.
func callModel(ctx Context, s MessagesState) (MessagesState, error) {
	resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{Messages: s.Messages})
	if err != nil {
		return s, err
	}
	s.Messages = append(s.Messages, resp.Message())
	return s, nil
}

// nameRecallClient answers "Your name is Bob." only when Bob introduced
// himself earlier in the conversation it was given.
func nameRecallClient() *llm.MockClient {
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		for _, m := range req.Messages {
			if m.Role == llm.RoleUser && strings.Contains(m.Content, "I'm Bob") {
				return &llm.CompletionResponse{Content: "Your name is Bob."}, nil
			}
		}
		return &llm.CompletionResponse{Content: "I don't know your name."}, nil
	})
}

func testCtx() Context {
	return NewContext(context.Background())
}

func human(text string) MessagesState {
	return MessagesState{Messages: []llm.Message{llm.Human(text)}}
}
