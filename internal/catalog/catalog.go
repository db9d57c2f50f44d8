package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"research-rag/internal/models"
)

// Catalog remembers which files went into which library and their content
// hash, so unchanged files are not embedded twice.
type Catalog struct {
	db *sqlx.DB
}

func Open(path string) (*Catalog, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init catalog schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			library     TEXT NOT NULL,
			filename    TEXT NOT NULL,
			sha256      TEXT NOT NULL,
			size        INTEGER NOT NULL,
			chunks      INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL,
			PRIMARY KEY (library, filename)
		)`,
	}
	for _, stmt := range tables {
		if _, err := c.db.Exec(stmt); err != nil {
			log.Error().Err(err).Str("sql", stmt).Msg("catalog schema statement failed")
			return err
		}
	}
	return nil
}

// Lookup returns the entry for filename or nil when it was never ingested.
func (c *Catalog) Lookup(ctx context.Context, library, filename string) (*models.CatalogEntry, error) {
	var e models.CatalogEntry
	err := c.db.GetContext(ctx, &e,
		`SELECT library, filename, sha256, size, chunks, ingested_at
		   FROM documents WHERE library = ? AND filename = ?`, library, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", filename, err)
	}
	return &e, nil
}

func (c *Catalog) Upsert(ctx context.Context, e models.CatalogEntry) error {
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now().UTC()
	}
	_, err := c.db.NamedExecContext(ctx,
		`INSERT INTO documents (library, filename, sha256, size, chunks, ingested_at)
		 VALUES (:library, :filename, :sha256, :size, :chunks, :ingested_at)
		 ON CONFLICT (library, filename) DO UPDATE SET
		   sha256 = excluded.sha256,
		   size = excluded.size,
		   chunks = excluded.chunks,
		   ingested_at = excluded.ingested_at`, e)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Filename, err)
	}
	return nil
}

func (c *Catalog) List(ctx context.Context, library string) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	err := c.db.SelectContext(ctx, &entries,
		`SELECT library, filename, sha256, size, chunks, ingested_at
		   FROM documents WHERE library = ? ORDER BY filename`, library)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return entries, nil
}

func (c *Catalog) Delete(ctx context.Context, library, filename string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE library = ? AND filename = ?`, library, filename)
	return err
}

// Reset forgets every file of library.
func (c *Catalog) Reset(ctx context.Context, library string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE library = ?`, library)
	return err
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
