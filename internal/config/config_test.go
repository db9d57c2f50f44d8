package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeys(t *testing.T) {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GROQ", "")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearKeys(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "scientific_papers_lib", cfg.Library.Name)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 600, cfg.RAG.MaxChunkSize)
	assert.Equal(t, 20, cfg.RAG.TopK)
	assert.Equal(t, 7, cfg.RAG.ContextChunks)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	clearKeys(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
library:
  name: papers
rag:
  chunk_size: 300
  max_chunk_size: 500
  top_k: 5
llm:
  model: from-file
  timeout: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("LLM_MODEL", "from-env")
	t.Setenv("GROQ_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "papers", cfg.Library.Name)
	assert.Equal(t, 300, cfg.RAG.ChunkSize)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "secret", cfg.LLM.Key)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLegacyGroqVariable(t *testing.T) {
	clearKeys(t)
	t.Setenv("GROQ", "legacy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.LLM.Key)
}

func TestValidateMissingKey(t *testing.T) {
	clearKeys(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := Default()
	cfg.LLM.Key = "k"
	require.NoError(t, cfg.Validate())

	cfg.VectorStore.Type = "qdrant"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Key = "k"
	cfg.RAG.MaxChunkSize = 100
	assert.Error(t, cfg.Validate())
}

func TestAllowsExtension(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.AllowsExtension(".PDF"))
	assert.True(t, cfg.AllowsExtension(".docx"))
	assert.True(t, cfg.AllowsExtension(".txt"))
	assert.False(t, cfg.AllowsExtension(".exe"))
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.LLM.Key = "gsk_secret"
	cfg.RAG.EncryptionKey = "library-passphrase"
	cfg.Database.URL = "postgres://rag:hunter2@db:5432/rag?sslmode=disable"
	cfg.Database.Password = "hunter3"

	out, err := json.Marshal(cfg.Redacted())
	require.NoError(t, err)
	for _, secret := range []string{"gsk_secret", "library-passphrase", "hunter2", "hunter3"} {
		assert.NotContains(t, string(out), secret)
	}
	assert.Contains(t, string(out), "db:5432")
	assert.Equal(t, "postgres://rag:hunter2@db:5432/rag?sslmode=disable", cfg.Database.URL)

	cfg.Database.URL = "host=db user=rag password=hunter2"
	assert.Equal(t, "xxxxx", cfg.Redacted().Database.URL)
}
