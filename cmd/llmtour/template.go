package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmtour/pkg/chatbot"
	"github.com/randalmurphal/llmtour/pkg/prompt"
)

func newTemplateCmd(a *app) *cobra.Command {
	var (
		thread, system string
		maxTokens      int
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Chat with memory through a system prompt template",
		Long: `Formats every model call as the system prompt followed by the thread's messages.
Jay introduces himself, then asks his name.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&thread, "thread", "abc345", "conversation thread")
	cmd.Flags().StringVar(&system, "system", chatbot.PiratePrompt, "system prompt")
	addMaxTokensFlag(cmd, &maxTokens)

	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		tmpl := prompt.FromMessages(
			prompt.System(system),
			prompt.Placeholder(prompt.MessagesKey),
		)
		bot, err := a.newBot(ctx, maxTokens, chatbot.WithTemplate(tmpl, nil))
		if err != nil {
			return err
		}
		for _, text := range []string{"Hi! I'm Jay.", "What's my name?"} {
			reply, err := bot.Send(ctx, thread, text)
			if err != nil {
				return err
			}
			if err := a.printMessage(reply); err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}
