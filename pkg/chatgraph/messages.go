package chatgraph

import (
	"github.com/google/uuid"
	"github.com/randalmurphal/llmtour/pkg/llm"
)

// MessagesState is the state of a chat graph: the conversation so far.
type MessagesState struct {
	Messages []llm.Message `json:"messages"`
}

// LastMessage returns the newest message and false when there is none.
func (s MessagesState) LastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// AddMessages merges update into current.
// An update message whose ID matches an existing message replaces it in
// place; every other message is appended. Messages without an ID get one.
// Neither argument is modified.
func AddMessages(current, update MessagesState) MessagesState {
	merged := make([]llm.Message, 0, len(current.Messages)+len(update.Messages))
	index := make(map[string]int, len(current.Messages))

	for _, m := range current.Messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}

	for _, m := range update.Messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if i, ok := index[m.ID]; ok {
			merged[i] = m
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}

	return MessagesState{Messages: merged}
}

// NewMessagesGraph returns a graph over MessagesState, the shape every
// chat tutorial builds.
func NewMessagesGraph() *Graph[MessagesState] {
	return NewGraph[MessagesState]()
}

// WithMessagesReducer installs AddMessages as the thread reducer.
func WithMessagesReducer() CompileOption {
	return WithReducer(AddMessages)
}
