package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OpenAI implements Client against any OpenAI-compatible chat completions API.
// The same client serves api.openai.com, DashScope's compatible mode (Qwen),
// and local gateways, selected by base URL.
type OpenAI struct {
	model       string
	baseURL     string
	apiKey      string
	temperature *float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client

	llm *openai.LLM
}

// OpenAIOption configures OpenAI.
type OpenAIOption func(*OpenAI)

// WithModel sets the default model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAI) { c.model = model }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAI) { c.baseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) OpenAIOption {
	return func(c *OpenAI) { c.apiKey = key }
}

// WithDefaultTemperature sets the temperature used when a request leaves it nil.
func WithDefaultTemperature(t float64) OpenAIOption {
	return func(c *OpenAI) { c.temperature = &t }
}

// WithDefaultMaxTokens caps replies for requests that leave MaxTokens zero.
func WithDefaultMaxTokens(n int) OpenAIOption {
	return func(c *OpenAI) { c.maxTokens = n }
}

// WithTimeout bounds each HTTP call of the default client. Default: 5m.
// It has no effect together with WithHTTPClient.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAI) { c.timeout = d }
}

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAI) { c.httpClient = client }
}

// NewOpenAI creates an OpenAI-compatible client.
// Outbound requests are traced with otelhttp unless WithHTTPClient is given.
func NewOpenAI(opts ...OpenAIOption) (*OpenAI, error) {
	c := &OpenAI{model: "gpt-4o-mini"}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		timeout := c.timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}
	}

	lcOpts := []openai.Option{
		openai.WithModel(c.model),
		openai.WithHTTPClient(c.httpClient),
	}
	if c.apiKey != "" {
		lcOpts = append(lcOpts, openai.WithToken(c.apiKey))
	}
	if c.baseURL != "" {
		lcOpts = append(lcOpts, openai.WithBaseURL(c.baseURL))
	}

	model, err := openai.New(lcOpts...)
	if err != nil {
		return nil, NewError("init", err, false)
	}
	c.llm = model
	return c, nil
}

// Model returns the default model name.
func (c *OpenAI) Model() string {
	return c.model
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.llm.GenerateContent(ctx, toMessageContent(req), c.callOptions(req)...)
	if err != nil {
		return nil, c.wrapError(ctx, "complete", err)
	}

	out, err := c.parseResponse(req, resp)
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

// Stream implements Client.
func (c *OpenAI) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)

	go func() {
		defer close(ch)

		stream := llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			select {
			case ch <- StreamChunk{Content: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		opts := append(c.callOptions(req), stream)
		resp, err := c.llm.GenerateContent(ctx, toMessageContent(req), opts...)
		if err != nil {
			select {
			case ch <- StreamChunk{Error: c.wrapError(ctx, "stream", err)}:
			case <-ctx.Done():
			}
			return
		}

		final := StreamChunk{Done: true}
		if out, err := c.parseResponse(req, resp); err == nil {
			final.Usage = &out.Usage
		}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// callOptions maps a request onto langchaingo call options.
// Request values take priority over client defaults.
func (c *OpenAI) callOptions(req CompletionRequest) []llms.CallOption {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	opts := []llms.CallOption{llms.WithModel(model)}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = req.Temperature
	}
	if temperature != nil {
		opts = append(opts, llms.WithTemperature(*temperature))
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	return opts
}

func (c *OpenAI) parseResponse(req CompletionRequest, resp *llms.ContentResponse) (*CompletionResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, NewError("complete", ErrEmptyResponse, false)
	}
	choice := resp.Choices[0]

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	usage := TokenUsage{
		InputTokens:  intInfo(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		TotalTokens:  intInfo(choice.GenerationInfo, "TotalTokens"),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	return &CompletionResponse{
		Content:      choice.Content,
		Model:        model,
		FinishReason: choice.StopReason,
		Usage:        usage,
	}, nil
}

func (c *OpenAI) wrapError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return NewError(op, ctx.Err(), false)
	}
	return NewError(op, fmt.Errorf("%s: %w", c.model, err), isRetryableError(err.Error()))
}

// toMessageContent converts llmtour messages into langchaingo message content.
// SystemPrompt, when set, is sent as a leading system message.
func toMessageContent(req CompletionRequest) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		out = append(out, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}
	return out
}

func chatMessageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
