package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmtour/pkg/chatbot"
	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		thread string
		steps  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a stored conversation",
		Long: `Prints the messages of a thread kept by --store sqlite. Without --thread, lists
the stored threads.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&thread, "thread", "", "thread to print")
	cmd.Flags().BoolVar(&steps, "steps", false, "list every checkpoint of the thread instead of its messages")

	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		store, err := a.checkpointStore()
		if err != nil {
			return err
		}
		if thread == "" {
			return a.listThreads(store)
		}

		// History never calls the model.
		bot, err := chatbot.New(newOfflineClient("history"), chatbot.WithStore(store), chatbot.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if steps {
			return a.printSteps(bot, thread)
		}

		msgs, err := bot.History(ctx, thread)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return fmt.Errorf("thread %q has no messages", thread)
		}
		for _, m := range msgs {
			if err := a.printMessage(m); err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}

func (a *app) listThreads(store checkpoint.Store) error {
	threads, err := store.Threads()
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		_, err := fmt.Fprintln(a.out, "no stored threads")
		return err
	}
	for _, t := range threads {
		if _, err := fmt.Fprintln(a.out, t); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) printSteps(bot *chatbot.Bot, thread string) error {
	snaps, err := bot.Graph().History(thread)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("thread %q has no checkpoints", thread)
	}
	for _, s := range snaps {
		if _, err := fmt.Fprintf(a.out, "%3d  %-10s -> %-10s  %d messages  %s\n",
			s.Sequence, s.NodeID, s.Next, len(s.Values.Messages), s.CreatedAt.Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
	}
	return nil
}
