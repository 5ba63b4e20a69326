package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultHashDims is the vector width of a HashingEmbedder.
const DefaultHashDims = 256

// HashingEmbedder embeds text by hashing lowercased words and word pairs
// into a fixed number of buckets. It needs no network, is deterministic,
// and ranks documents by shared vocabulary.
type HashingEmbedder struct {
	dims int
}

var _ embeddings.Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder returns an embedder producing dims-wide vectors.
// Non-positive dims selects DefaultHashDims.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashingEmbedder{dims: dims}
}

// Name identifies the embedder for index compatibility checks.
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing-%d", e.dims)
}

// EmbedDocuments implements embeddings.Embedder.
func (e *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

// EmbedQuery implements embeddings.Embedder.
func (e *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@' && r != '_'
	})

	add := func(feature string, weight float32) {
		h := fnv.New32a()
		h.Write([]byte(feature))
		sum := h.Sum32()
		// The top bit picks the sign so collisions tend to cancel.
		if sum&(1<<31) != 0 {
			weight = -weight
		}
		vec[int(sum%uint32(e.dims))] += weight
	}
	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// NewOpenAIEmbedder returns a langchaingo embedder calling an
// OpenAI-compatible embeddings endpoint. Empty apiKey and baseURL fall back
// to the langchaingo defaults (OPENAI_API_KEY, api.openai.com).
func NewOpenAIEmbedder(model, apiKey, baseURL string) (embeddings.Embedder, error) {
	var opts []openai.Option
	if model != "" {
		opts = append(opts, openai.WithEmbeddingModel(model))
	}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embeddings client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}
