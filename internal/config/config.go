package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when the LLM API key is not set.
var ErrMissingAPIKey = errors.New("llm api key is not set")

type Config struct {
	Library     LibraryConfig     `yaml:"library"`
	Documents   DocumentsConfig   `yaml:"documents"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	LLM         LLMConfig         `yaml:"llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

type LibraryConfig struct {
	Name string `yaml:"name"`
}

type DocumentsConfig struct {
	Path              string   `yaml:"path"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// LLMConfig describes an OpenAI compatible (or ollama) endpoint.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Key         string  `yaml:"-" json:"-"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BatchSize   int     `yaml:"batch_size"`
	// Timeout bounds one completion request, e.g. "60s".
	Timeout time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	ChunkStrategy string `yaml:"chunk_strategy"`
	ChunkSize     int    `yaml:"chunk_size"`
	MaxChunkSize  int    `yaml:"max_chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	ContextChunks int    `yaml:"context_chunks"`
	EncryptionKey string `yaml:"encryption_key" json:"-"`
}

type VectorStoreConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// DatabaseConfig is only used by the postgres vector store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Password string `yaml:"password" json:"-"`
	Debug    bool   `yaml:"debug"`
}

type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"`
	// MaxUploadMB caps the multipart body, not individual files.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads .env (if any), the yaml file at path (if it exists), applies
// defaults and environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("decode config file failed: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file failed: %w", err)
		}
	}

	applyDefaults(cfg)
	overrideByEnv(cfg)
	return cfg, nil
}

// Validate checks settings that must be present before the UI is served.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Key) == "" {
		return fmt.Errorf("%w: export %s or add it to .env", ErrMissingAPIKey, c.LLM.APIKeyEnv)
	}
	if strings.TrimSpace(c.Library.Name) == "" {
		return errors.New("library name is empty")
	}
	if c.RAG.ChunkSize <= 0 || c.RAG.MaxChunkSize < c.RAG.ChunkSize {
		return fmt.Errorf("invalid chunk sizes: chunk_size=%d max_chunk_size=%d", c.RAG.ChunkSize, c.RAG.MaxChunkSize)
	}
	switch c.VectorStore.Type {
	case "chromem", "postgres":
	default:
		return fmt.Errorf("unknown vector store type: %s", c.VectorStore.Type)
	}
	return nil
}

// Redacted returns a copy safe to log. Secrets are already hidden from json
// by their tags; the database URL may carry a password in its userinfo.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.URL != "" {
		u, err := url.Parse(out.Database.URL)
		if err != nil || u.Scheme == "" {
			out.Database.URL = "xxxxx"
		} else {
			out.Database.URL = u.Redacted()
		}
	}
	return &out
}

// AllowsExtension reports whether ext (with leading dot) may be uploaded.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range c.Documents.AllowedExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func Default() *Config {
	return &Config{
		Library: LibraryConfig{Name: "scientific_papers_lib"},
		Documents: DocumentsConfig{
			Path:              "./research_papers",
			AllowedExtensions: []string{".pdf", ".docx", ".txt", ".md", ".pptx", ".xlsx"},
		},
		EmbedLLM: LLMConfig{
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			Model:     "jina/jina-embeddings-v2-small-en",
			BatchSize: 32,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "llama-3.3-70b-versatile",
			APIKeyEnv: "GROQ_API_KEY",
			Timeout:   60 * time.Second,
		},
		RAG: RAGConfig{
			ChunkStrategy: "smart",
			ChunkSize:     400,
			MaxChunkSize:  600,
			ChunkOverlap:  50,
			TopK:          20,
			ContextChunks: 7,
		},
		VectorStore: VectorStoreConfig{
			Type: "chromem",
			Path: "./chromemdb",
		},
		Database: DatabaseConfig{Driver: "pgdriver"},
		HTTP: HTTPConfig{
			Addr:        ":8501",
			GinMode:     "release",
			MaxUploadMB: 64,
		},
		Log: LogConfig{Level: "info"},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Library.Name == "" {
		cfg.Library.Name = def.Library.Name
	}
	if cfg.Documents.Path == "" {
		cfg.Documents.Path = def.Documents.Path
	}
	if len(cfg.Documents.AllowedExtensions) == 0 {
		cfg.Documents.AllowedExtensions = def.Documents.AllowedExtensions
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = def.EmbedLLM.Provider
	}
	if cfg.EmbedLLM.BatchSize <= 0 {
		cfg.EmbedLLM.BatchSize = def.EmbedLLM.BatchSize
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = def.LLM.Timeout
	}
	if cfg.RAG.ChunkStrategy == "" {
		cfg.RAG.ChunkStrategy = def.RAG.ChunkStrategy
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.MaxChunkSize <= 0 {
		cfg.RAG.MaxChunkSize = def.RAG.MaxChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize / 8
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.RAG.ContextChunks <= 0 {
		cfg.RAG.ContextChunks = def.RAG.ContextChunks
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = def.VectorStore.Path
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = def.HTTP.Addr
	}
	if cfg.HTTP.GinMode == "" {
		cfg.HTTP.GinMode = def.HTTP.GinMode
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = def.HTTP.MaxUploadMB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

func overrideByEnv(cfg *Config) {
	cfg.Library.Name = getEnv("LIBRARY_NAME", cfg.Library.Name)
	cfg.Documents.Path = getEnv("DOCUMENTS_PATH", cfg.Documents.Path)
	cfg.EmbedLLM.Model = getEnv("EMBEDDING_MODEL", cfg.EmbedLLM.Model)
	cfg.EmbedLLM.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.EmbedLLM.BaseURL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.VectorStore.Path = getEnv("VECTOR_STORE_PATH", cfg.VectorStore.Path)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.MaxUploadMB = getEnvAsInt("HTTP_MAX_UPLOAD_MB", cfg.HTTP.MaxUploadMB)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	// older setups export the key as plain GROQ
	cfg.LLM.Key = getEnv(cfg.LLM.APIKeyEnv, os.Getenv("GROQ"))
	if cfg.EmbedLLM.APIKeyEnv != "" {
		cfg.EmbedLLM.Key = os.Getenv(cfg.EmbedLLM.APIKeyEnv)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
