package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"research-rag/internal/config"
	"research-rag/internal/llmservice"
	"research-rag/internal/metrics"
	"research-rag/internal/models"
	"research-rag/internal/vectorstore"
)

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrEmptyLibrary = errors.New("library has no documents, upload and process files first")
	ErrNoContext    = errors.New("no context retrieved for the query")
	ErrLLM          = errors.New("answer generation failed")
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type RAG struct {
	store    vectorstore.Store
	embedder embeddings.Embedder
	llm      llmservice.Generator
	cfg      *config.Config
	metrics  *metrics.Metrics
}

func NewRAG(store vectorstore.Store, embedder embeddings.Embedder, llm llmservice.Generator, cfg *config.Config, m *metrics.Metrics) *RAG {
	return &RAG{store: store, embedder: embedder, llm: llm, cfg: cfg, metrics: m}
}

// Ask retrieves context for query and asks the LLM to answer from it.
func (r *RAG) Ask(ctx context.Context, query string) (*models.PromptResponse, error) {
	chunks, err := r.Retrieve(ctx, query)
	if err != nil {
		r.metrics.Query(outcome(err))
		return nil, err
	}
	res, err := r.Synthesize(ctx, query, chunks)
	r.metrics.Query(outcome(err))
	return res, err
}

// Retrieve returns the top_k chunks closest to query, most similar first.
func (r *RAG) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count library: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyLibrary
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := r.store.Search(ctx, queryEmbedding, r.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("query", query).Int("results", len(chunks)).Msg("Retrieved context")
	return chunks, nil
}

// Synthesize builds the prompt from the first context_chunks chunks and
// returns the model's answer.
func (r *RAG) Synthesize(ctx context.Context, query string, chunks []models.Chunk) (*models.PromptResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(chunks) == 0 {
		return nil, ErrNoContext
	}
	if len(chunks) > r.cfg.RAG.ContextChunks {
		chunks = chunks[:r.cfg.RAG.ContextChunks]
	}

	prompt := BuildPrompt(query, chunks)
	log.Debug().Int("context_chunks", len(chunks)).Int("prompt_len", len(prompt)).Msg("Prompting LLM")

	if r.cfg.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.LLM.Timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := llmservice.GenerateContent(ctx, r.llm, &r.cfg.LLM, llmservice.Messages(models.SystemPrompt, prompt))
	r.metrics.LLMRequest(time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("model", r.cfg.LLM.Model).Msg("LLM request failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %w", ErrLLM, llmservice.Describe(err), context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: %s", ErrLLM, llmservice.Describe(err))
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  Sources(chunks),
		Content: answer,
		HTML:    RenderHTML(answer),
		Chunks:  chunks,
	}, nil
}

// BuildPrompt fills the prompt template with the chunk texts.
func BuildPrompt(query string, chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return fmt.Sprintf(models.PromptTemplate, strings.Join(parts, models.ContextSeparator), query)
}

// Sources lists "file p.N" for each distinct page in chunks, in order.
func Sources(chunks []models.Chunk) string {
	seen := make(map[string]bool, len(chunks))
	var out []string
	for _, c := range chunks {
		s := fmt.Sprintf("%s p.%d", c.SourceFilename, c.PageNumber)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return strings.Join(out, ", ")
}

// RenderHTML converts a markdown answer to HTML. Raw HTML in the answer is
// not passed through.
func RenderHTML(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		log.Warn().Err(err).Msg("Rendering answer markdown failed")
		return ""
	}
	return buf.String()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "answered"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrEmptyLibrary):
		return "empty_library"
	case errors.Is(err, ErrNoContext):
		return "no_context"
	case errors.Is(err, ErrLLM):
		return "llm_error"
	}
	return "error"
}
