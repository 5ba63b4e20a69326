package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/observability"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Pipeline defaults.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultAppVersion  = "1.0"
	DefaultTopK        = 4
	DefaultTemperature = 0.0
)

// Traced step names.
const (
	StepRetrieve = "retrieve_documents"
	StepGenerate = "generate_response"
	StepCall     = "call_openai"
	StepAsk      = "langsmith_rag"
)

// ErrEmptyAnswer is returned when the model replies with no content.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

type generateInput struct {
	Question  string            `json:"question"`
	Documents []schema.Document `json:"documents"`
}

// Pipeline answers questions with retrieved context.
// It is safe for concurrent use when its retriever and client are.
type Pipeline struct {
	retriever    schema.Retriever
	client       llm.Client
	model        string
	temperature  float64
	systemPrompt string
	appVersion   string

	retrieve func(context.Context, string) ([]schema.Document, error)
	generate func(context.Context, generateInput) (*llm.CompletionResponse, error)
	call     func(context.Context, []llm.Message) (*llm.CompletionResponse, error)
	askOpts  []observability.TraceOption
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithModel sets the model requested for answers. Default: gpt-4o-mini.
func WithModel(model string) PipelineOption {
	return func(p *Pipeline) { p.model = model }
}

// WithTemperature sets the sampling temperature. Default: 0.
func WithTemperature(t float64) PipelineOption {
	return func(p *Pipeline) { p.temperature = t }
}

// WithSystemPrompt replaces SystemPrompt.
func WithSystemPrompt(prompt string) PipelineOption {
	return func(p *Pipeline) { p.systemPrompt = prompt }
}

// WithAppVersion sets the app_version recorded on every span.
func WithAppVersion(v string) PipelineOption {
	return func(p *Pipeline) { p.appVersion = v }
}

// NewPipeline builds a pipeline over retriever and client.
//
// Example:
//
//	store, _ := rag.NewVectorStore(ctx, rag.NewHashingEmbedder(0))
//	p := rag.NewPipeline(vectorstores.ToRetriever(store, 4), client)
//	answer, err := p.Ask(ctx, "How can I trace with the @traceable decorator?")
func NewPipeline(retriever schema.Retriever, client llm.Client, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		retriever:    retriever,
		client:       client,
		model:        DefaultModel,
		temperature:  DefaultTemperature,
		systemPrompt: SystemPrompt,
		appVersion:   DefaultAppVersion,
	}
	for _, opt := range opts {
		opt(p)
	}

	meta := []observability.TraceOption{
		observability.WithMetadata("app_version", p.appVersion),
		observability.WithMetadata("model_name", p.model),
	}
	with := func(opts ...observability.TraceOption) []observability.TraceOption {
		return append(append([]observability.TraceOption{}, meta...), opts...)
	}

	p.retrieve = observability.Traceable(StepRetrieve, p.retrieveDocuments,
		with(observability.WithRunType(observability.RunTypeRetriever))...)
	p.call = observability.Traceable(StepCall, p.callModel,
		with(observability.WithRunType(observability.RunTypeLLM))...)
	p.generate = observability.Traceable(StepGenerate, p.generateResponse, with()...)
	p.askOpts = with()
	return p
}

// RetrieveDocuments returns the documents relevant to question.
func (p *Pipeline) RetrieveDocuments(ctx context.Context, question string) ([]schema.Document, error) {
	return p.retrieve(ctx, question)
}

// GenerateResponse asks the model to answer question from docs.
func (p *Pipeline) GenerateResponse(ctx context.Context, question string, docs []schema.Document) (*llm.CompletionResponse, error) {
	return p.generate(ctx, generateInput{Question: question, Documents: docs})
}

// CallModel sends messages to the model with the pipeline's model and temperature.
func (p *Pipeline) CallModel(ctx context.Context, messages []llm.Message) (*llm.CompletionResponse, error) {
	return p.call(ctx, messages)
}

// Ask retrieves context for question and returns the model's answer.
func (p *Pipeline) Ask(ctx context.Context, question string) (string, error) {
	answer, _, err := p.AskWithSources(ctx, question)
	return answer, err
}

// AskWithSources is Ask that also returns the documents the answer was
// generated from. Retrieval runs once, inside the same langsmith_rag span.
func (p *Pipeline) AskWithSources(ctx context.Context, question string) (string, []schema.Document, error) {
	var docs []schema.Document
	ask := observability.Traceable(StepAsk, func(ctx context.Context, question string) (string, error) {
		var (
			answer string
			err    error
		)
		answer, docs, err = p.answer(ctx, question)
		return answer, err
	}, p.askOpts...)

	answer, err := ask(ctx, question)
	if err != nil {
		return "", nil, err
	}
	return answer, docs, nil
}

func (p *Pipeline) retrieveDocuments(ctx context.Context, question string) ([]schema.Document, error) {
	docs, err := p.retriever.GetRelevantDocuments(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	return docs, nil
}

func (p *Pipeline) generateResponse(ctx context.Context, in generateInput) (*llm.CompletionResponse, error) {
	return p.call(ctx, BuildMessages(p.systemPrompt, in.Documents, in.Question))
}

func (p *Pipeline) callModel(ctx context.Context, messages []llm.Message) (*llm.CompletionResponse, error) {
	return p.client.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		Model:       p.model,
		Temperature: llm.Temperature(p.temperature),
	})
}

func (p *Pipeline) answer(ctx context.Context, question string) (string, []schema.Document, error) {
	docs, err := p.retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}
	resp, err := p.generate(ctx, generateInput{Question: question, Documents: docs})
	if err != nil {
		return "", nil, err
	}
	if resp == nil || resp.Content == "" {
		return "", nil, ErrEmptyAnswer
	}
	return resp.Content, docs, nil
}

// IndexOptions configures IndexDir.
type IndexOptions struct {
	Chunk ChunkOptions
	// EmbedderName identifies the embedder; an index built by a different
	// embedder is rebuilt.
	EmbedderName string
	// Rebuild discards any existing index contents.
	Rebuild bool
}

// IndexDir returns a store holding the chunks of dir. With a non-nil idx,
// an existing index built by the same embedder is reused as-is; otherwise
// dir is loaded, embedded and written to idx.
func IndexDir(ctx context.Context, dir string, embedder embeddings.Embedder, idx *SQLiteIndex, opts IndexOptions) (*VectorStore, error) {
	if idx == nil {
		store, err := NewVectorStore(ctx, embedder)
		if err != nil {
			return nil, err
		}
		return store, addDir(ctx, store, dir, opts.Chunk)
	}

	built, err := idx.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	count, err := idx.Count(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Rebuild || built != opts.EmbedderName || count == 0 {
		if err := idx.Reset(ctx); err != nil {
			return nil, err
		}
		if err := idx.SetEmbedder(ctx, opts.EmbedderName); err != nil {
			return nil, err
		}
	}

	store, err := NewVectorStore(ctx, embedder, WithIndex(idx))
	if err != nil {
		return nil, err
	}
	if store.Len() > 0 {
		return store, nil
	}
	return store, addDir(ctx, store, dir, opts.Chunk)
}

func addDir(ctx context.Context, store vectorstores.VectorStore, dir string, chunk ChunkOptions) error {
	docs, err := LoadDir(ctx, dir, chunk)
	if err != nil {
		return err
	}
	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("index %s: %w", dir, err)
	}
	return nil
}
