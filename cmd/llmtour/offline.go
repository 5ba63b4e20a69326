package main

import (
	"context"
	"regexp"
	"strings"

	"github.com/randalmurphal/llmtour/pkg/llm"
)

var (
	introPattern     = regexp.MustCompile(`\bI'?m ([A-Z][a-zA-Z]*)`)
	translatePattern = regexp.MustCompile(`^Translate the following from English into (.+)$`)
)

// newOfflineClient answers without a network: it translates by tagging,
// recalls names introduced earlier in the conversation, and answers
// retrieval prompts from the first sentence of their context.
func newOfflineClient(model string) *llm.MockClient {
	return llm.NewMockClient("").WithModel(model).WithCompleteFunc(
		func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			content := offlineReply(req.Messages)
			in := 0
			for _, m := range req.Messages {
				in += len(strings.Fields(m.Content))
			}
			out := len(strings.Fields(content))
			return &llm.CompletionResponse{
				Content:      content,
				Model:        model,
				FinishReason: "stop",
				Usage:        llm.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
			}, nil
		})
}

func offlineReply(msgs []llm.Message) string {
	var system, last string
	var name string
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleUser:
			last = m.Content
			if match := introPattern.FindStringSubmatch(m.Content); match != nil {
				name = match[1]
			}
		}
	}

	if match := translatePattern.FindStringSubmatch(system); match != nil {
		return "[" + match[1] + "] " + last
	}
	if ctxText, _, ok := strings.Cut(strings.TrimPrefix(last, "Context: "), " \n\n Question: "); ok && strings.HasPrefix(last, "Context: ") {
		return firstSentence(ctxText)
	}

	prefix := ""
	if strings.Contains(system, "pirate") {
		prefix = "Arr! "
	}
	switch {
	case strings.Contains(strings.ToLower(last), "name") && name != "":
		return prefix + "Your name is " + name + "."
	case strings.Contains(strings.ToLower(last), "name"):
		return prefix + "I don't know your name."
	case name != "":
		return prefix + "Hello " + name + "! How can I help you today?"
	default:
		return prefix + "Hello! How can I help you today?"
	}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "I don't know."
	}
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1]
	}
	return text
}
