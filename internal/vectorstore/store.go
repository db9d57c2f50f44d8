package vectorstore

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"research-rag/internal/chromemdb"
	"research-rag/internal/config"
	"research-rag/internal/db"
	"research-rag/internal/models"
)

// Store persists embedded chunks of one library and supports similarity search.
type Store interface {
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, embedding []float32, k int) ([]models.Chunk, error)
	DeleteSource(ctx context.Context, filename string) error
	Reset(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.VectorStore.Type. embed is only
// used by chromem for documents or queries passed without a vector.
func Open(ctx context.Context, cfg *config.Config, embed chromem.EmbeddingFunc) (Store, error) {
	switch cfg.VectorStore.Type {
	case "chromem", "":
		return chromemdb.NewVectorDBManager(
			cfg.VectorStore.Path,
			cfg.Library.Name,
			cfg.VectorStore.Compress,
			cfg.RAG.EncryptionKey,
			embed,
		)
	case "postgres":
		return db.Open(ctx, &cfg.Database, cfg.Library.Name)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.VectorStore.Type)
	}
}
