package rag_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/observability"
	"github.com/randalmurphal/llmtour/pkg/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type stubRetriever struct {
	docs []schema.Document
	err  error
}

func (s stubRetriever) GetRelevantDocuments(context.Context, string) ([]schema.Document, error) {
	return s.docs, s.err
}

func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func attrs(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestPipeline_Ask(t *testing.T) {
	client := llm.NewMockClient("Decorate the function with @traceable.")
	p := rag.NewPipeline(stubRetriever{docs: corpus[:1]}, client)

	answer, err := p.Ask(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "Decorate the function with @traceable.", answer)

	req := client.LastCall()
	require.NotNil(t, req)
	assert.Equal(t, rag.DefaultModel, req.Model)
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, rag.SystemPrompt, req.Messages[0].Content)
	assert.Equal(t, rag.UserContent(corpus[:1], question), req.Messages[1].Content)
}

func TestPipeline_Options(t *testing.T) {
	client := llm.NewMockClient("ok")
	p := rag.NewPipeline(stubRetriever{}, client,
		rag.WithModel("gpt-4o"),
		rag.WithTemperature(0.3),
		rag.WithSystemPrompt("be brief"))

	_, err := p.GenerateResponse(context.Background(), "q", nil)
	require.NoError(t, err)

	req := client.LastCall()
	assert.Equal(t, "gpt-4o", req.Model)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-9)
	assert.Equal(t, "be brief", req.Messages[0].Content)
}

func TestPipeline_Errors(t *testing.T) {
	boom := errors.New("index offline")

	p := rag.NewPipeline(stubRetriever{err: boom}, llm.NewMockClient("x"))
	_, err := p.Ask(context.Background(), question)
	assert.ErrorIs(t, err, boom)

	p = rag.NewPipeline(stubRetriever{}, llm.NewMockClient(""))
	_, err = p.Ask(context.Background(), question)
	assert.ErrorIs(t, err, rag.ErrEmptyAnswer)

	p = rag.NewPipeline(stubRetriever{}, llm.NewMockClient("x").WithError(boom))
	_, err = p.Ask(context.Background(), question)
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_TracesSteps(t *testing.T) {
	exporter := setupTracing(t)
	p := rag.NewPipeline(stubRetriever{docs: corpus[:1]}, llm.NewMockClient("answer"),
		rag.WithAppVersion("2.0"))

	_, err := p.Ask(context.Background(), question)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 4)
	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	root := byName[rag.StepAsk]
	retrieve := byName[rag.StepRetrieve]
	generate := byName[rag.StepGenerate]
	call := byName[rag.StepCall]

	assert.Equal(t, root.SpanContext.SpanID(), retrieve.Parent.SpanID())
	assert.Equal(t, root.SpanContext.SpanID(), generate.Parent.SpanID())
	assert.Equal(t, generate.SpanContext.SpanID(), call.Parent.SpanID())

	assert.Equal(t, "retriever", attrs(retrieve.Attributes)[observability.AttrSpanKind])
	assert.Equal(t, "llm", attrs(call.Attributes)[observability.AttrSpanKind])
	assert.Equal(t, "chain", attrs(root.Attributes)[observability.AttrSpanKind])

	rootAttrs := attrs(root.Attributes)
	assert.Equal(t, "2.0", rootAttrs[observability.AttrMetadataPrefix+"app_version"])
	assert.Equal(t, rag.DefaultModel, rootAttrs[observability.AttrMetadataPrefix+"model_name"])
	assert.Equal(t, `"`+question+`"`, rootAttrs[observability.AttrInput])
	assert.Equal(t, `"answer"`, rootAttrs[observability.AttrOutput])
}

func TestIndexDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "tracing.md", corpus[0].PageContent)
	writeFile(t, dir, "eval.md", corpus[1].PageContent)
	embedder := rag.NewHashingEmbedder(0)

	t.Run("in memory", func(t *testing.T) {
		store, err := rag.IndexDir(ctx, dir, embedder, nil, rag.IndexOptions{Chunk: rag.DefaultChunkOptions()})
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("reuses a built index", func(t *testing.T) {
		idx, err := rag.OpenSQLiteIndex(filepath.Join(t.TempDir(), "idx.db"))
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })
		opts := rag.IndexOptions{Chunk: rag.DefaultChunkOptions(), EmbedderName: embedder.Name()}

		_, err = rag.IndexDir(ctx, dir, embedder, idx, opts)
		require.NoError(t, err)

		// The documents are gone but the index still answers.
		store, err := rag.IndexDir(ctx, t.TempDir(), embedder, idx, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())

		p := rag.NewPipeline(vectorstores.ToRetriever(store, 1), llm.NewMockClient("ok"))
		docs, err := p.RetrieveDocuments(ctx, question)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "tracing.md", docs[0].Metadata[rag.MetadataSource])
	})

	t.Run("rebuilds for another embedder", func(t *testing.T) {
		idx, err := rag.OpenSQLiteIndex(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })

		_, err = rag.IndexDir(ctx, dir, embedder, idx, rag.IndexOptions{EmbedderName: "old"})
		require.NoError(t, err)

		_, err = rag.IndexDir(ctx, t.TempDir(), embedder, idx, rag.IndexOptions{EmbedderName: "new"})
		assert.ErrorIs(t, err, rag.ErrNoDocuments)
	})
}

type countingRetriever struct {
	stubRetriever
	calls int
}

func (c *countingRetriever) GetRelevantDocuments(ctx context.Context, q string) ([]schema.Document, error) {
	c.calls++
	return c.stubRetriever.GetRelevantDocuments(ctx, q)
}

func TestPipeline_AskWithSources(t *testing.T) {
	exporter := setupTracing(t)
	retriever := &countingRetriever{stubRetriever: stubRetriever{docs: corpus[:2]}}
	p := rag.NewPipeline(retriever, llm.NewMockClient("answer"))

	answer, docs, err := p.AskWithSources(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.Equal(t, corpus[:2], docs)
	assert.Equal(t, 1, retriever.calls)

	var retrieves, roots int
	for _, s := range exporter.GetSpans() {
		switch s.Name {
		case rag.StepRetrieve:
			retrieves++
		case rag.StepAsk:
			roots++
			assert.Equal(t, `"answer"`, attrs(s.Attributes)[observability.AttrOutput])
		}
	}
	assert.Equal(t, 1, retrieves)
	assert.Equal(t, 1, roots)
}

func TestPipeline_AskWithSourcesError(t *testing.T) {
	p := rag.NewPipeline(stubRetriever{docs: corpus[:1]}, llm.NewMockClient(""))
	_, docs, err := p.AskWithSources(context.Background(), question)
	assert.ErrorIs(t, err, rag.ErrEmptyAnswer)
	assert.Nil(t, docs)
}
