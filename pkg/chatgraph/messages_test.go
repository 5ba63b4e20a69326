package chatgraph

import (
	"testing"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMessages(t *testing.T) {
	hi := llm.Message{ID: "1", Role: llm.RoleUser, Content: "Hi! I'm Bob."}
	hello := llm.Message{ID: "2", Role: llm.RoleAssistant, Content: "Hello Bob!"}

	tests := []struct {
		name    string
		current []llm.Message
		update  []llm.Message
		want    []string
	}{
		{
			name:    "append to empty",
			current: nil,
			update:  []llm.Message{hi},
			want:    []string{"Hi! I'm Bob."},
		},
		{
			name:    "append new ids",
			current: []llm.Message{hi},
			update:  []llm.Message{hello},
			want:    []string{"Hi! I'm Bob.", "Hello Bob!"},
		},
		{
			name:    "replace matching id in place",
			current: []llm.Message{hi, hello},
			update:  []llm.Message{{ID: "1", Role: llm.RoleUser, Content: "Hi! I'm Jay."}},
			want:    []string{"Hi! I'm Jay.", "Hello Bob!"},
		},
		{
			name:    "empty update",
			current: []llm.Message{hi},
			update:  nil,
			want:    []string{"Hi! I'm Bob."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMessages(MessagesState{Messages: tt.current}, MessagesState{Messages: tt.update})

			contents := make([]string, len(got.Messages))
			for i, m := range got.Messages {
				contents[i] = m.Content
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestAddMessages_AssignsMissingIDs(t *testing.T) {
	got := AddMessages(MessagesState{}, MessagesState{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "a"},
		{Role: llm.RoleUser, Content: "b"},
	}})

	require.Len(t, got.Messages, 2)
	assert.NotEmpty(t, got.Messages[0].ID)
	assert.NotEqual(t, got.Messages[0].ID, got.Messages[1].ID)
}

func TestAddMessages_DoesNotMutateInputs(t *testing.T) {
	current := MessagesState{Messages: []llm.Message{{ID: "1", Content: "old"}}}
	update := MessagesState{Messages: []llm.Message{{ID: "1", Content: "new"}, {Content: "no id"}}}

	AddMessages(current, update)

	assert.Equal(t, "old", current.Messages[0].Content)
	assert.Empty(t, update.Messages[1].ID)
}

func TestMessagesState_LastMessage(t *testing.T) {
	_, ok := MessagesState{}.LastMessage()
	assert.False(t, ok)

	m, ok := MessagesState{Messages: []llm.Message{llm.Human("a"), llm.AI("b")}}.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "b", m.Content)
}
