package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/randalmurphal/llmtour/pkg/config"
	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/rag"
)

const ragQuestion = "How can I trace with the @traceable decorator?"

func newRAGCmd(a *app) *cobra.Command {
	var (
		docsDir string
		topK    int
		rebuild bool
		sources bool
	)
	cmd := &cobra.Command{
		Use:   "rag [question]",
		Short: "Answer a question from local documents with traced steps",
		Long: `Loads and chunks the documents, retrieves the chunks closest to the question and
asks the model to answer from them. Each step is a span: langsmith_rag wraps
retrieve_documents and generate_response, which wraps call_openai.`,
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&docsDir, "docs", "", "document directory (default: rag.docs_dir setting)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "chunks to retrieve (default: rag.top_k setting)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "re-embed the documents even if the index is current")
	cmd.Flags().BoolVar(&sources, "sources", false, "list the retrieved chunks after the answer")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		question := ragQuestion
		if len(args) == 1 {
			question = args[0]
		}
		rs := a.settings.RAG
		if docsDir != "" {
			rs.DocsDir = docsDir
		}
		if topK > 0 {
			rs.TopK = topK
		}
		return a.rag(ctx, question, rs, rebuild, sources)
	})
	return cmd
}

func (a *app) rag(ctx context.Context, question string, rs config.RAGSettings, rebuild, sources bool) error {
	if err := a.setupTracing(ctx); err != nil {
		return err
	}
	client, err := a.chatModel(a.model(rag.DefaultModel), a.provider(chatProvider))
	if err != nil {
		return err
	}

	embedder, name, err := a.embedder(rs.EmbeddingModel)
	if err != nil {
		return err
	}

	var idx *rag.SQLiteIndex
	if rs.IndexPath != "" {
		idx, err = rag.OpenSQLiteIndex(rs.IndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()
	}

	store, err := rag.IndexDir(ctx, rs.DocsDir, embedder, idx, rag.IndexOptions{
		Chunk:        rag.ChunkOptions{Size: rs.ChunkSize, Overlap: rs.ChunkOverlap},
		EmbedderName: name,
		Rebuild:      rebuild,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("documents indexed", slog.Int("chunks", store.Len()), slog.String("embedder", name))

	var storeOpts []vectorstores.Option
	if rs.ScoreThreshold > 0 {
		storeOpts = append(storeOpts, vectorstores.WithScoreThreshold(rs.ScoreThreshold))
	}
	pipeline := rag.NewPipeline(vectorstores.ToRetriever(store, rs.TopK, storeOpts...), client,
		rag.WithModel(a.model(rag.DefaultModel)))

	answer, docs, err := pipeline.AskWithSources(ctx, question)
	if err != nil {
		return err
	}
	if err := a.printAnswer(answer); err != nil {
		return err
	}

	if sources {
		a.printSeparator()
		for _, d := range docs {
			if err := a.printMessage(llm.Message{
				Role:    llm.RoleTool,
				Name:    sourceOf(d.Metadata),
				Content: d.PageContent,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// embedder picks the OpenAI embedder when an embedding model is configured
// and the run is online, the local hashing embedder otherwise.
func (a *app) embedder(model string) (embeddings.Embedder, string, error) {
	if model == "" || a.offline {
		e := rag.NewHashingEmbedder(0)
		return e, e.Name(), nil
	}
	p, _ := llm.LookupProvider(chatProvider)
	e, err := rag.NewOpenAIEmbedder(model, os.Getenv(p.APIKeyEnv), os.Getenv(p.BaseURLEnv))
	if err != nil {
		return nil, "", err
	}
	return e, "openai-" + model, nil
}

func sourceOf(md map[string]any) string {
	if s, ok := md[rag.MetadataSource].(string); ok {
		return s
	}
	return ""
}
