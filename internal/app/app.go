package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"research-rag/internal/catalog"
	"research-rag/internal/chromemdb"
	"research-rag/internal/config"
	"research-rag/internal/embedding"
	"research-rag/internal/helper"
	"research-rag/internal/ingest"
	"research-rag/internal/llmservice"
	"research-rag/internal/metrics"
	"research-rag/internal/parser"
	"research-rag/internal/rag"
	"research-rag/internal/vectorstore"
)

const catalogFile = "catalog.db"

// App holds the long lived components shared by the CLI and the web server.
type App struct {
	Config  *config.Config
	Store   vectorstore.Store
	Catalog *catalog.Catalog
	Ingest  *ingest.Service
	RAG     *rag.RAG
	Metrics *metrics.Metrics
}

// New validates cfg and wires the configured embedder, LLM client and stores.
// No network call is made.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	llm, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return NewWithClients(ctx, cfg, embedder, llm)
}

// NewWithClients is New with caller supplied model clients.
func NewWithClients(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, llm llmservice.Generator) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.Documents.Path, cfg.VectorStore.Path} {
		if err := helper.CreateFolder(dir); err != nil {
			return nil, err
		}
	}

	store, err := vectorstore.Open(ctx, cfg, embedFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	cat, err := catalog.Open(filepath.Join(cfg.VectorStore.Path, catalogFile))
	if err != nil {
		store.Close()
		return nil, err
	}

	m := metrics.New()
	if n, err := store.Count(ctx); err == nil {
		m.LibrarySize(n)
		log.Info().
			Str("library", cfg.Library.Name).
			Str("store", cfg.VectorStore.Type).
			Int("chunks", n).
			Msg("Library opened")
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Catalog: cat,
		Ingest:  ingest.NewService(cfg, parser.New(cfg.RAG), embedder, store, cat, m),
		RAG:     rag.NewRAG(store, embedder, llm, cfg, m),
		Metrics: m,
	}, nil
}

// Vectors returns the chromem backend, or an error for other store types.
func (a *App) Vectors() (*chromemdb.VectorDBManager, error) {
	m, ok := a.Store.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, fmt.Errorf("vector store %q does not support export/import", a.Config.VectorStore.Type)
	}
	return m, nil
}

func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Catalog.Close())
}

// embedFunc lets chromem embed texts that arrive without a vector.
func embedFunc(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
