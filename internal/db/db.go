package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"research-rag/internal/config"
	"research-rag/internal/models"
)

type Document struct {
	bun.BaseModel  `bun:"table:rag_chunks,alias:d"`
	ID             string          `bun:"id,pk"`
	Library        string          `bun:"library,notnull"`
	Content        string          `bun:"content,notnull"`
	Embedding      pgvector.Vector `bun:"embedding,notnull,type:vector"`
	SourceFilename string          `bun:"source_filename,notnull"`
	PageNumber     int             `bun:"page_number"`
	ChunkID        int             `bun:"chunk_id"`
	Similarity     float32         `bun:"similarity,scanonly"`
}

// Store is a pgvector backed chunk store scoped to one library.
type Store struct {
	db      *bun.DB
	library string
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with bun's pgdriver or with lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is empty")
	}
	switch cfg.Driver {
	case "pq":
		connector, err := pq.NewConnector(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("pq connector: %w", err)
		}
		return sql.OpenDB(connector), nil
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// Open connects, prepares the schema and returns a store for library.
func Open(ctx context.Context, cfg *config.DatabaseConfig, library string) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db, library), nil
}

func NewStore(db *bun.DB, library string) *Store {
	return &Store{db: db, library: library}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("rag_chunks_library_source_idx").
		IfNotExists().
		Column("library", "source_filename").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.countQuery().Count(ctx)
}

func (s *Store) countQuery() *bun.SelectQuery {
	return s.db.NewSelect().Model((*Document)(nil)).Where("library = ?", s.library)
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return errors.New("chunk id is required")
		}
		docs[i] = Document{
			ID:             c.ID,
			Library:        s.library,
			Content:        c.Content,
			Embedding:      pgvector.NewVector(c.Embedding),
			SourceFilename: c.SourceFilename,
			PageNumber:     c.PageNumber,
			ChunkID:        c.ChunkID,
		}
	}
	if _, err := s.insertQuery(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	return nil
}

func (s *Store) insertQuery(docs *[]Document) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(docs).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding")
}

func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.Chunk, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}
	if k <= 0 {
		return nil, nil
	}
	var docs []Document
	if err := s.searchQuery(&docs, embedding, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	chunks := make([]models.Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = models.Chunk{
			ID:             d.ID,
			Content:        d.Content,
			SourceFilename: d.SourceFilename,
			PageNumber:     d.PageNumber,
			ChunkID:        d.ChunkID,
			Similarity:     d.Similarity,
		}
	}
	return chunks, nil
}

// searchQuery orders by cosine distance, nearest first.
func (s *Store) searchQuery(docs *[]Document, embedding []float32, k int) *bun.SelectQuery {
	q := pgvector.NewVector(embedding)
	return s.db.NewSelect().
		Model(docs).
		Column("id", "content", "source_filename", "page_number", "chunk_id").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", q).
		Where("library = ?", s.library).
		OrderExpr("embedding <=> ?", q).
		Limit(k)
}

func (s *Store) DeleteSource(ctx context.Context, filename string) error {
	_, err := s.deleteQuery(filename).Exec(ctx)
	return err
}

// Reset removes all chunks of the library.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.deleteQuery("").Exec(ctx)
	return err
}

// deleteQuery targets one source file of the library, or all of it when
// filename is empty.
func (s *Store) deleteQuery(filename string) *bun.DeleteQuery {
	q := s.db.NewDelete().Model((*Document)(nil)).Where("library = ?", s.library)
	if filename != "" {
		q = q.Where("source_filename = ?", filename)
	}
	return q
}

func (s *Store) Close() error {
	return s.db.Close()
}
