package rag

import (
	"strings"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/tmc/langchaingo/schema"
)

// SystemPrompt instructs the model to answer only from retrieved context.
const SystemPrompt = "You are an assistant for question-answering tasks. \n" +
	"Use the following pieces of retrieved context to answer the latest question in the conversation. \n" +
	"If you don't know the answer, just say that you don't know. \n" +
	"Use three sentences maximum and keep the answer concise.\n"

// FormatDocs joins document contents with blank lines.
func FormatDocs(docs []schema.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.PageContent
	}
	return strings.Join(parts, "\n\n")
}

// UserContent renders the user turn: the context, then the question.
func UserContent(docs []schema.Document, question string) string {
	return "Context: " + FormatDocs(docs) + " \n\n Question: " + question
}

// BuildMessages returns the system and user messages for question.
func BuildMessages(systemPrompt string, docs []schema.Document, question string) []llm.Message {
	return []llm.Message{
		llm.System(systemPrompt),
		llm.Human(UserContent(docs, question)),
	}
}
