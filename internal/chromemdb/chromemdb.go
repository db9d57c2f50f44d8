package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"research-rag/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations for one
// named collection (a library).
type VectorDBManager struct {
	db *chromem.DB

	// guards collection, which Reset and Import replace
	mu             sync.RWMutex
	collection     *chromem.Collection
	collectionName string
	embed          chromem.EmbeddingFunc
	dbPath         string
	compress       bool
	encryptionKey  string
}

// NewVectorDBManager opens (or creates) the persistent database at dbPath and
// the collection named collectionName inside it. An empty dbPath keeps
// everything in memory.
func NewVectorDBManager(dbPath, collectionName string, compress bool, encryptionKey string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		embed:          embed,
		dbPath:         dbPath,
		compress:       compress,
		encryptionKey:  encryptionKey,
	}
	if _, err := m.getOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection, m.mu must be held
func (m *VectorDBManager) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection.Count(), nil
}

// Add stores chunks that already carry embeddings. Chunks with an existing ID
// are overwritten.
func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return errors.New("chunk id is required")
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  createMetadata(c),
			Embedding: c.Embedding,
		})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to k chunks ordered by descending similarity.
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]models.Chunk, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}
	// the clamp and the query must see the same documents
	m.mu.RLock()
	defer m.mu.RUnlock()
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, chunkFromResult(r))
	}
	return chunks, nil
}

// DeleteSource removes every chunk that came from filename.
func (m *VectorDBManager) DeleteSource(ctx context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.collection.Delete(ctx, map[string]string{models.MetaSource: filename}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", filename, err)
	}
	return nil
}

// Reset drops the collection and creates it again empty.
func (m *VectorDBManager) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.getOrCreateCollection()
	return err
}

func (m *VectorDBManager) Close() error {
	return nil
}

// Export writes the collection to an encrypted file.
func (m *VectorDBManager) Export(_ context.Context, filePath string) error {
	if m.encryptionKey == "" {
		return errors.New("encryption key is required")
	}
	if filePath == "" {
		filePath = filepath.Join(m.dbPath, m.collectionName+".chromem")
	}

	log.Debug().
		Str("collection", m.collectionName).
		Str("file", filePath).
		Bool("compress", m.compress).
		Msg("Exporting collection")

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the collection from a file written by Export.
func (m *VectorDBManager) Import(_ context.Context, filePath string) error {
	if m.encryptionKey == "" {
		return errors.New("encryption key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// the import replaces the collection object
	c := m.db.GetCollection(m.collectionName, m.embed)
	if c == nil {
		return fmt.Errorf("collection %s missing from %s", m.collectionName, filePath)
	}
	m.collection = c
	return nil
}

func createMetadata(c models.Chunk) map[string]string {
	return map[string]string{
		models.MetaSource:  c.SourceFilename,
		models.MetaPage:    strconv.Itoa(c.PageNumber),
		models.MetaChunkID: strconv.Itoa(c.ChunkID),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata[models.MetaPage])
	chunkID, _ := strconv.Atoi(r.Metadata[models.MetaChunkID])
	return models.Chunk{
		ID:             r.ID,
		Content:        r.Content,
		SourceFilename: r.Metadata[models.MetaSource],
		PageNumber:     page,
		ChunkID:        chunkID,
		Embedding:      r.Embedding,
		Similarity:     r.Similarity,
	}
}
