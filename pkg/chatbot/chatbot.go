// Package chatbot assembles the memory chatbot: a one-node chat graph over
// MessagesState whose conversations are kept per thread by a checkpointer.
//
//	bot, err := chatbot.New(client)
//	reply, err := bot.Send(ctx, "abc123", "Hi! I'm Bob.")
//	reply, err = bot.Send(ctx, "abc123", "What's my name?") // remembers Bob
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/llmtour/pkg/chatgraph"
	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/prompt"
)

// NodeModel is the ID of the graph's only node.
const NodeModel = "model"

// PiratePrompt is the system prompt of the templated chatbot.
const PiratePrompt = "You talk like a pirate. Answer all questions to the best of your ability."

// ErrNoReply is returned when a turn ends without an assistant message.
var ErrNoReply = errors.New("chatbot produced no reply")

// Bot is a chatbot with per-thread memory. It is safe for concurrent use
// on different threads.
type Bot struct {
	client   llm.Client
	model    string
	template *prompt.Template
	vars     map[string]any
	trim     *trimming
	store    checkpoint.Store
	logger   *slog.Logger
	runOpts  []chatgraph.RunOption
	app      *chatgraph.CompiledGraph[chatgraph.MessagesState]
}

type trimming struct {
	maxTokens int
	counter   llm.TokenCounter
	opts      llm.TrimOptions
}

// Option configures a Bot.
type Option func(*Bot)

// WithTemplate formats every model call through t. The thread's messages
// fill the "messages" placeholder; vars fill any text variables.
// Template output is sent to the model but never stored in the thread.
func WithTemplate(t *prompt.Template, vars map[string]any) Option {
	return func(b *Bot) {
		b.template = t
		b.vars = vars
	}
}

// WithTrimming sends only the newest messages fitting in maxTokens as
// counted by counter. The stored thread keeps every message.
func WithTrimming(maxTokens int, counter llm.TokenCounter, opts llm.TrimOptions) Option {
	return func(b *Bot) {
		b.trim = &trimming{maxTokens: maxTokens, counter: counter, opts: opts}
	}
}

// WithStore keeps threads in store. Default: a new checkpoint.MemoryStore.
func WithStore(store checkpoint.Store) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithModel sets the model named in each request. Default: the client's.
func WithModel(model string) Option {
	return func(b *Bot) {
		b.model = model
	}
}

// WithLogger sets the logger for graph runs.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithRunOptions applies opts to every turn, e.g. chatgraph.WithTracing().
func WithRunOptions(opts ...chatgraph.RunOption) Option {
	return func(b *Bot) {
		b.runOpts = append(b.runOpts, opts...)
	}
}

// New builds the START → model → END graph around client.
func New(client llm.Client, opts ...Option) (*Bot, error) {
	if client == nil {
		return nil, errors.New("chatbot: client is required")
	}
	b := &Bot{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = checkpoint.NewMemoryStore()
	}

	app, err := chatgraph.NewMessagesGraph().
		AddNode(NodeModel, b.callModel).
		AddEdge(chatgraph.START, NodeModel).
		AddEdge(NodeModel, chatgraph.END).
		Compile(
			chatgraph.WithName("chatbot"),
			chatgraph.WithCheckpointer(b.store),
			chatgraph.WithMessagesReducer(),
		)
	if err != nil {
		return nil, fmt.Errorf("compile chatbot graph: %w", err)
	}
	b.app = app
	return b, nil
}

// Graph returns the compiled graph.
func (b *Bot) Graph() *chatgraph.CompiledGraph[chatgraph.MessagesState] {
	return b.app
}

// Send adds a human message to the thread and returns the reply.
func (b *Bot) Send(ctx context.Context, threadID, text string) (llm.Message, error) {
	out, err := b.SendMessages(ctx, threadID, llm.Human(text))
	if err != nil {
		return llm.Message{}, err
	}
	last, ok := out.LastMessage()
	if !ok || last.Role != llm.RoleAssistant {
		return llm.Message{}, ErrNoReply
	}
	return last, nil
}

// SendMessages adds msgs to the thread, runs one turn and returns the
// whole conversation.
func (b *Bot) SendMessages(ctx context.Context, threadID string, msgs ...llm.Message) (chatgraph.MessagesState, error) {
	gctx := chatgraph.NewContext(ctx,
		chatgraph.WithLLM(b.client),
		chatgraph.WithLogger(b.logger))

	opts := append([]chatgraph.RunOption{chatgraph.WithThreadID(threadID)}, b.runOpts...)
	return b.app.Invoke(gctx, chatgraph.MessagesState{Messages: msgs}, opts...)
}

// History returns the thread's messages, oldest first. An unknown thread
// has no messages.
func (b *Bot) History(ctx context.Context, threadID string) ([]llm.Message, error) {
	snap, err := b.app.GetState(ctx, threadID)
	if errors.Is(err, chatgraph.ErrNoCheckpoints) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Values.Messages, nil
}

// Forget deletes the thread.
func (b *Bot) Forget(threadID string) error {
	return b.app.DeleteThread(threadID)
}

func (b *Bot) callModel(ctx chatgraph.Context, state chatgraph.MessagesState) (chatgraph.MessagesState, error) {
	msgs := state.Messages
	if b.trim != nil {
		msgs = llm.TrimMessages(msgs, b.trim.maxTokens, b.trim.counter, b.trim.opts)
	}
	if b.template != nil {
		var err error
		msgs, err = b.template.Invoke(chatgraph.MessagesState{Messages: msgs}, b.vars)
		if err != nil {
			return state, fmt.Errorf("format prompt: %w", err)
		}
	}

	client := ctx.LLM()
	if client == nil {
		client = b.client
	}
	resp, err := client.Complete(ctx, llm.CompletionRequest{Messages: msgs, Model: b.model})
	if err != nil {
		return state, err
	}

	ctx.Logger().Debug("model replied",
		slog.Int("sent_messages", len(msgs)),
		slog.Int("output_tokens", resp.Usage.OutputTokens))
	return chatgraph.AddMessages(state, chatgraph.MessagesState{
		Messages: []llm.Message{resp.Message()},
	}), nil
}
