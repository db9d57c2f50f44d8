package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-rag/internal/config"
	"research-rag/internal/models"
)

type fakeEmbedder struct {
	calls int
	drop  bool
	err   error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t)), 1})
	}
	if f.drop {
		out = out[1:]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbedChunks(t *testing.T) {
	chunks := []models.Chunk{{Content: "a"}, {Content: "bbb"}}
	e := &fakeEmbedder{}

	require.NoError(t, EmbedChunks(context.Background(), e, chunks))
	assert.Equal(t, 1, e.calls)
	assert.Equal(t, []float32{1, 1}, chunks[0].Embedding)
	assert.Equal(t, []float32{3, 1}, chunks[1].Embedding)
}

func TestEmbedChunksEmpty(t *testing.T) {
	e := &fakeEmbedder{}
	require.NoError(t, EmbedChunks(context.Background(), e, nil))
	assert.Zero(t, e.calls)
}

func TestEmbedChunksErrors(t *testing.T) {
	chunks := []models.Chunk{{Content: "a"}, {Content: "b"}}

	err := EmbedChunks(context.Background(), &fakeEmbedder{drop: true}, chunks)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)

	boom := errors.New("connection refused")
	err = EmbedChunks(context.Background(), &fakeEmbedder{err: boom}, chunks)
	assert.ErrorIs(t, err, boom)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestNewEmbedderOllama(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
