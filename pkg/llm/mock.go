package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a Client for tests and offline runs.
// It returns canned responses and records every request it receives.
type MockClient struct {
	mu           sync.Mutex
	response     string
	responses    []string
	next         int
	err          error
	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	model        string

	// Calls holds every request in the order received.
	Calls []CompletionRequest
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response, model: "mock"}
}

// WithResponses makes the mock cycle through responses in order.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithCompleteFunc replaces the canned behavior with fn.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// WithModel sets the model name reported in responses.
func (m *MockClient) WithModel(model string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
	return m
}

// Model returns the model name reported in responses.
func (m *MockClient) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, cloneRequest(req))
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	fn := m.completeFunc
	content := m.nextResponse()
	model := m.model
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	in := approxTokens(req)
	out := max(1, len(strings.Fields(content)))
	return &CompletionResponse{
		Content:      content,
		Model:        model,
		FinishReason: "stop",
		Usage: TokenUsage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
		},
	}, nil
}

// Stream implements Client. The response is split into word chunks
// followed by a final Done chunk that carries usage.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for _, piece := range splitKeepSpace(resp.Content) {
			select {
			case ch <- StreamChunk{Content: piece}:
			case <-ctx.Done():
				ch <- StreamChunk{Error: ctx.Err()}
				return
			}
		}
		usage := resp.Usage
		select {
		case ch <- StreamChunk{Done: true, Usage: &usage}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// CallCount returns the number of requests received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil if there were none.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and rewinds sequential responses.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}

// nextResponse must be called with mu held.
func (m *MockClient) nextResponse() string {
	if len(m.responses) == 0 {
		return m.response
	}
	r := m.responses[m.next%len(m.responses)]
	m.next++
	return r
}

func cloneRequest(req CompletionRequest) CompletionRequest {
	msgs := make([]Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	return req
}

func approxTokens(req CompletionRequest) int {
	n := len(strings.Fields(req.SystemPrompt))
	for _, msg := range req.Messages {
		n += len(strings.Fields(msg.Content))
	}
	return max(1, n)
}

// splitKeepSpace splits s into words, keeping the separating space on
// each piece so that concatenating the pieces yields s.
func splitKeepSpace(s string) []string {
	if s == "" {
		return nil
	}
	var pieces []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == ' ' && s[i-1] != ' ' {
			pieces = append(pieces, s[start:i])
			start = i
		}
	}
	return append(pieces, s[start:])
}
