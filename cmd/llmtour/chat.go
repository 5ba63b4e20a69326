package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmtour/pkg/llm"
)

const (
	chatModel    = "gpt-4o-mini"
	chatProvider = "openai"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Show that a bare chat model has no memory",
		Long: `Introduces Bob, asks for his name in a separate call (the model cannot know it),
then asks again passing the earlier turns by hand (the model answers).`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ []string) error {
			return a.chat(ctx)
		}),
	}
}

func (a *app) chat(ctx context.Context) error {
	if err := a.setupTracing(ctx); err != nil {
		return err
	}
	client, err := a.chatModel(a.model(chatModel), a.provider(chatProvider))
	if err != nil {
		return err
	}

	ask := func(msgs ...llm.Message) (*llm.CompletionResponse, error) {
		return client.Complete(ctx, llm.CompletionRequest{Messages: msgs})
	}

	intro := llm.Human("Hi! I'm Bob")
	first, err := ask(intro)
	if err != nil {
		return err
	}
	if err := a.printAnswer(first.Content); err != nil {
		return err
	}

	a.printSeparator()
	second, err := ask(llm.Human("What is my name?"))
	if err != nil {
		return err
	}
	if err := a.printAnswer(second.Content); err != nil {
		return err
	}

	a.printSeparator()
	third, err := ask(intro, first.Message(), llm.Human("What's my name?"))
	if err != nil {
		return err
	}
	return a.printAnswer(third.Content)
}
