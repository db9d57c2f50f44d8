package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-rag/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Documents.Path = filepath.Join(dir, "research_papers")
	cfg.VectorStore.Path = filepath.Join(dir, "chromemdb")
	return cfg
}

func TestNewMissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Key = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.NoDirExists(t, cfg.VectorStore.Path)
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Key = "gsk_test"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.DirExists(t, cfg.Documents.Path)
	assert.FileExists(t, filepath.Join(cfg.VectorStore.Path, catalogFile))

	st, err := a.Ingest.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scientific_papers_lib", st.Name)
	assert.Zero(t, st.Chunks)

	v, err := a.Vectors()
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestNewUnknownStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Key = "gsk_test"
	cfg.VectorStore.Type = "faiss"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
