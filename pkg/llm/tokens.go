package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenCounter counts the tokens a message list costs.
type TokenCounter interface {
	CountMessages(msgs []Message) int
}

// TokenCounterFunc adapts a function to TokenCounter.
type TokenCounterFunc func(msgs []Message) int

// CountMessages implements TokenCounter.
func (f TokenCounterFunc) CountMessages(msgs []Message) int {
	return f(msgs)
}

// Tokenizer counts tokens with a tiktoken encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerOnce sync.Once
	defaultTokenizerErr  error
)

// UseEmbeddedEncodings makes tokenizers load their encodings from data
// compiled into the binary instead of downloading them on first use.
func UseEmbeddedEncodings() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// NewTokenizer loads the named tiktoken encoding (e.g. "cl100k_base").
func NewTokenizer(encoding string) (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tokenizer{encoding: enc}, nil
}

// DefaultTokenizer returns a shared cl100k_base tokenizer.
func DefaultTokenizer() (*Tokenizer, error) {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer, defaultTokenizerErr = NewTokenizer("cl100k_base")
	})
	return defaultTokenizer, defaultTokenizerErr
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessages implements TokenCounter. Each message costs its role and
// content plus 4 tokens of framing; the reply primer adds 3.
func (t *Tokenizer) CountMessages(msgs []Message) int {
	tokens := 3
	for _, m := range msgs {
		tokens += 4
		tokens += t.Count(string(m.Role))
		tokens += t.Count(m.Content)
	}
	return tokens
}

// TrimOptions controls TrimMessages.
type TrimOptions struct {
	// IncludeSystem keeps a leading system message even when older turns are dropped.
	IncludeSystem bool
	// StartOnHuman drops leading non-user messages from the kept window.
	StartOnHuman bool
}

// TrimMessages keeps the most recent messages whose total cost under counter
// stays within maxTokens. It never splits a message. The input is not modified.
func TrimMessages(msgs []Message, maxTokens int, counter TokenCounter, opts TrimOptions) []Message {
	if len(msgs) == 0 {
		return nil
	}

	var system *Message
	rest := msgs
	if opts.IncludeSystem && msgs[0].Role == RoleSystem {
		system = &msgs[0]
		rest = msgs[1:]
	}

	window := func(start int) []Message {
		out := make([]Message, 0, len(rest)-start+1)
		if system != nil {
			out = append(out, *system)
		}
		return append(out, rest[start:]...)
	}

	start := len(rest)
	for start > 0 && counter.CountMessages(window(start-1)) <= maxTokens {
		start--
	}

	if opts.StartOnHuman {
		for start < len(rest) && rest[start].Role != RoleUser {
			start++
		}
	}

	kept := window(start)
	if system != nil && counter.CountMessages(kept) > maxTokens {
		return nil
	}
	return kept
}
