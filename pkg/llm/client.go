// Package llm provides the chat model boundary used across llmtour:
// role-tagged messages, completion requests, and clients that talk to
// hosted OpenAI-compatible APIs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client sends completion requests to a chat model.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the request and blocks until the full response arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends the request and delivers the response incrementally.
	// The channel is closed after the final chunk (Done or Error set).
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// Sentinel errors.
var (
	// ErrUnknownProvider indicates InitChatModel was given an unregistered provider.
	ErrUnknownProvider = errors.New("unknown model provider")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Error wraps a provider failure with the operation that produced it.
// Retryable is informational; llmtour never retries on its own.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// isRetryableError checks if an error message indicates a transient error.
func isRetryableError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "429") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "502") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "504")
}
