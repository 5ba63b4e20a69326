// Command llmtour runs the LLM tutorials: translation, chat with and
// without memory, prompt templates, and traced retrieval-augmented
// generation.
//
// Usage:
//
//	llmtour translate --language Dutch "hi, how are you doing today?"
//	llmtour memory --store sqlite --db threads.db
//	llmtour rag --docs ./docs "How can I trace with the @traceable decorator?"
//
// Credentials come from the environment or a .env file. --offline answers
// every call locally so each tutorial runs without an API key.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
