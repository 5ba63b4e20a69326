package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmtour/pkg/chatbot"
	"github.com/randalmurphal/llmtour/pkg/chatgraph"
	"github.com/randalmurphal/llmtour/pkg/llm"
)

func newMemoryCmd(a *app) *cobra.Command {
	var (
		thread, otherThread string
		maxTokens           int
	)
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Chat through a graph that remembers each thread",
		Long: `Runs a START -> model -> END graph with a checkpointer. Bob introduces himself
and asks his name on one thread (remembered), then asks again on another thread
(forgotten).`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&thread, "thread", "abc123", "thread for the first conversation")
	cmd.Flags().StringVar(&otherThread, "other-thread", "abc234", "thread that starts over")
	addMaxTokensFlag(cmd, &maxTokens)

	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		bot, err := a.newBot(ctx, maxTokens)
		if err != nil {
			return err
		}
		turns := []struct{ thread, text string }{
			{thread, "Hi! I'm Bob."},
			{thread, "What's my name?"},
			{otherThread, "What's my name?"},
		}
		for _, turn := range turns {
			reply, err := bot.Send(ctx, turn.thread, turn.text)
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

// addMaxTokensFlag registers --max-tokens on a chatbot command.
func addMaxTokensFlag(cmd *cobra.Command, maxTokens *int) {
	cmd.Flags().IntVar(maxTokens, "max-tokens", 0, "send only the newest messages fitting in this many tokens (0 sends the whole thread)")
}

// newBot builds the memory chatbot over the configured store. A positive
// maxTokens trims what each model call sees to that many cl100k_base tokens.
func (a *app) newBot(ctx context.Context, maxTokens int, opts ...chatbot.Option) (*chatbot.Bot, error) {
	if err := a.setupTracing(ctx); err != nil {
		return nil, err
	}
	client, err := a.chatModel(a.model(chatModel), a.provider(chatProvider))
	if err != nil {
		return nil, err
	}
	store, err := a.checkpointStore()
	if err != nil {
		return nil, err
	}

	runOpts := []chatgraph.RunOption{chatgraph.WithTracing()}
	if a.meter != nil {
		runOpts = append(runOpts, chatgraph.WithMetricsRecorder(a.meter.recorder))
	}
	base := []chatbot.Option{
		chatbot.WithStore(store),
		chatbot.WithLogger(a.logger),
		chatbot.WithRunOptions(runOpts...),
	}
	if maxTokens > 0 {
		tok, err := llm.DefaultTokenizer()
		if err != nil {
			return nil, err
		}
		base = append(base, chatbot.WithTrimming(maxTokens, tok,
			llm.TrimOptions{IncludeSystem: true, StartOnHuman: true}))
	}
	return chatbot.New(client, append(base, opts...)...)
}
