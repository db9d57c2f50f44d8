package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"research-rag/internal/catalog"
	"research-rag/internal/config"
	"research-rag/internal/embedding"
	"research-rag/internal/helper"
	"research-rag/internal/metrics"
	"research-rag/internal/models"
	"research-rag/internal/parser"
	"research-rag/internal/vectorstore"
)

var ErrNoDocuments = errors.New("no documents to process")

// Service turns the files of the documents folder into a library.
type Service struct {
	cfg      *config.Config
	parser   parser.Parser
	embedder embeddings.Embedder
	store    vectorstore.Store
	catalog  *catalog.Catalog
	metrics  *metrics.Metrics

	// one ingestion at a time
	mu sync.Mutex
}

func NewService(cfg *config.Config, p parser.Parser, embedder embeddings.Embedder, store vectorstore.Store, cat *catalog.Catalog, m *metrics.Metrics) *Service {
	return &Service{
		cfg:      cfg,
		parser:   p,
		embedder: embedder,
		store:    store,
		catalog:  cat,
		metrics:  m,
	}
}

// Save writes uploaded files into the documents folder. Invalid files are
// reported as skipped; the others are saved.
func (s *Service) Save(docs []models.Document) []models.FileResult {
	results := make([]models.FileResult, 0, len(docs))
	for _, doc := range docs {
		name := parser.Filename(doc.Filename)
		res := models.FileResult{Filename: name}
		doc.Filename = name

		if err := s.validate(doc); err != nil {
			res.Status = models.StatusSkipped
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if err := os.WriteFile(filepath.Join(s.cfg.Documents.Path, name), doc.Data, 0o644); err != nil {
			log.Error().Err(err).Str("file", name).Msg("Saving upload failed")
			res.Status = models.StatusFailed
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		log.Info().Str("file", name).Int("bytes", len(doc.Data)).Msg("Saved upload")
		res.Status = models.StatusSaved
		results = append(results, res)
	}
	return results
}

func (s *Service) validate(doc models.Document) error {
	if doc.Filename == "" || doc.Filename == "." || strings.HasPrefix(doc.Filename, ".") {
		return fmt.Errorf("invalid file name %q", doc.Filename)
	}
	if ext := doc.Ext(); !s.cfg.AllowsExtension(ext) || !parser.Supported(ext) {
		return fmt.Errorf("%w: %q", parser.ErrUnsupportedFormat, ext)
	}
	if len(doc.Data) == 0 {
		return parser.ErrEmptyDocument
	}
	return nil
}

// Process ingests every file of the documents folder. Files whose content
// is unchanged since the last run are reported as cached. With force the
// library is emptied first.
func (s *Service) Process(ctx context.Context, force bool) (*models.IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, s.cfg.Documents.Path)
	}

	report := &models.IngestReport{Library: s.cfg.Library.Name}
	if force {
		log.Info().Str("library", s.cfg.Library.Name).Msg("Rebuilding library")
		if err := s.reset(ctx); err != nil {
			return nil, err
		}
		report.Rebuilt = true
	}

	existing, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count library: %w", err)
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := s.processFile(ctx, name, existing > 0)
		s.metrics.FileProcessed(res.Status)
		report.Files = append(report.Files, res)
	}

	if err := s.prune(ctx, files); err != nil {
		log.Warn().Err(err).Msg("Pruning removed files failed")
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count library: %w", err)
	}
	report.TotalChunks = total
	s.metrics.LibrarySize(total)

	log.Info().
		Str("library", report.Library).
		Int("files", len(report.Files)).
		Int("failed", len(report.Failed())).
		Int("chunks", total).
		Msg("Processing finished")
	return report, nil
}

func (s *Service) processFile(ctx context.Context, name string, populated bool) models.FileResult {
	res := models.FileResult{Filename: name}
	fail := func(status string, err error) models.FileResult {
		log.Warn().Err(err).Str("file", name).Str("status", status).Msg("File not ingested")
		res.Status = status
		res.Error = err.Error()
		return res
	}

	doc := models.Document{Filename: name}
	if err := s.validate(doc); err != nil && !errors.Is(err, parser.ErrEmptyDocument) {
		return fail(models.StatusSkipped, err)
	}
	path := filepath.Join(s.cfg.Documents.Path, name)
	fi, err := os.Stat(path)
	if err != nil {
		return fail(models.StatusFailed, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(models.StatusFailed, err)
	}
	if len(data) == 0 {
		return fail(models.StatusSkipped, parser.ErrEmptyDocument)
	}
	doc.Data = data

	hash := helper.SHA256Hex(data)
	entry, err := s.catalog.Lookup(ctx, s.cfg.Library.Name, name)
	if err != nil {
		return fail(models.StatusFailed, err)
	}
	if populated && entry != nil && entry.SHA256 == hash {
		log.Debug().Str("file", name).Msg("Unchanged, using cached chunks")
		if fi.ModTime().After(entry.IngestedAt) {
			// touched but identical, restamp so Status stops reporting it
			touched := *entry
			touched.IngestedAt = ingestedAt(fi)
			if err := s.catalog.Upsert(ctx, touched); err != nil {
				log.Warn().Err(err).Str("file", name).Msg("Failed to restamp catalog entry")
			}
		}
		res.Status = models.StatusCached
		res.Chunks = entry.Chunks
		return res
	}

	chunks, err := s.parser.Parse(doc)
	if err != nil {
		return fail(models.StatusFailed, err)
	}
	for i := range chunks {
		c := &chunks[i]
		c.ID = helper.ChunkUUID(s.cfg.Library.Name, name, c.PageNumber, c.ChunkID, c.Content)
	}
	if err := embedding.EmbedChunks(ctx, s.embedder, chunks); err != nil {
		return fail(models.StatusFailed, err)
	}

	// a changed file replaces all of its previous chunks
	if err := s.store.DeleteSource(ctx, name); err != nil {
		return fail(models.StatusFailed, err)
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		return fail(models.StatusFailed, err)
	}
	s.metrics.ChunksStored(len(chunks))

	err = s.catalog.Upsert(ctx, models.CatalogEntry{
		Library:    s.cfg.Library.Name,
		Filename:   name,
		SHA256:     hash,
		Size:       int64(len(data)),
		Chunks:     len(chunks),
		IngestedAt: ingestedAt(fi),
	})
	if err != nil {
		return fail(models.StatusFailed, err)
	}

	log.Info().Str("file", name).Int("chunks", len(chunks)).Msg("Ingested")
	res.Status = models.StatusIngested
	res.Chunks = len(chunks)
	return res
}

// ingestedAt stamps a catalog entry no earlier than the file's mtime, so
// files dated in the future do not stay pending.
func ingestedAt(fi os.FileInfo) time.Time {
	now := time.Now().UTC()
	if fi.ModTime().After(now) {
		return fi.ModTime().UTC()
	}
	return now
}

// prune drops chunks of catalogued files that left the documents folder.
func (s *Service) prune(ctx context.Context, files []string) error {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	entries, err := s.catalog.List(ctx, s.cfg.Library.Name)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if present[e.Filename] {
			continue
		}
		log.Info().Str("file", e.Filename).Msg("Removing chunks of deleted file")
		if err := s.store.DeleteSource(ctx, e.Filename); err != nil {
			return err
		}
		if err := s.catalog.Delete(ctx, e.Library, e.Filename); err != nil {
			return err
		}
	}
	return nil
}

// Status reports what the library holds and which files still need processing.
func (s *Service) Status(ctx context.Context) (*models.LibraryStatus, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count library: %w", err)
	}
	entries, err := s.catalog.List(ctx, s.cfg.Library.Name)
	if err != nil {
		return nil, err
	}
	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	known := make(map[string]models.CatalogEntry, len(entries))
	for _, e := range entries {
		known[e.Filename] = e
	}
	status := &models.LibraryStatus{Name: s.cfg.Library.Name, Chunks: n, Documents: entries}
	for _, f := range files {
		e, ok := known[f]
		if !ok {
			status.Pending = append(status.Pending, f)
			continue
		}
		fi, err := os.Stat(filepath.Join(s.cfg.Documents.Path, f))
		if err != nil {
			continue
		}
		// same size edits in place only show up in the mtime
		if fi.Size() != e.Size || fi.ModTime().After(e.IngestedAt) {
			status.Pending = append(status.Pending, f)
		}
	}
	return status, nil
}

// Reset empties the library. Files in the documents folder are kept.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset(ctx)
}

func (s *Service) reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset library: %w", err)
	}
	if err := s.catalog.Reset(ctx, s.cfg.Library.Name); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	s.metrics.LibrarySize(0)
	return nil
}

// listFiles returns the regular, non hidden files of the documents folder.
func (s *Service) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Documents.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read documents folder: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
