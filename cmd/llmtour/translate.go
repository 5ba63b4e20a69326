package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/prompt"
)

const (
	translateModel    = "qwen-plus"
	translateProvider = "qwen"
	translateDefault  = "hi, how are you doing today?"
)

var translateTemplate = prompt.FromMessages(
	prompt.System("Translate the following from English into {language}"),
	prompt.Human("{text}"),
)

func newTranslateCmd(a *app) *cobra.Command {
	var (
		language string
		stream   bool
	)
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate English text with a chat model",
		Long:  `Sends a system instruction and the text to qwen-plus at temperature 0. Credentials come from QWEN_API_KEY and QWEN_BASE_URL.`,
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVarP(&language, "language", "l", "Dutch", "target language")
	cmd.Flags().BoolVar(&stream, "stream", false, "print tokens as they arrive, separated by |")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		text := translateDefault
		if len(args) == 1 {
			text = args[0]
		}
		return a.translate(ctx, language, text, stream)
	})
	return cmd
}

func (a *app) translate(ctx context.Context, language, text string, stream bool) error {
	if err := a.setupTracing(ctx); err != nil {
		return err
	}
	client, err := a.chatModel(a.model(translateModel), a.provider(translateProvider), llm.WithDefaultTemperature(0))
	if err != nil {
		return err
	}

	msgs, err := translateTemplate.Format(map[string]any{"language": language, "text": text})
	if err != nil {
		return err
	}
	req := llm.CompletionRequest{Messages: msgs, Temperature: llm.Temperature(0)}

	if stream {
		chunks, err := client.Stream(ctx, req)
		if err != nil {
			return err
		}
		_, err = streamTo(a.out, chunks, "|")
		return err
	}

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return err
	}
	return a.printAnswer(strings.TrimSpace(resp.Content))
}
