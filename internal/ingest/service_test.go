package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-rag/internal/catalog"
	"research-rag/internal/chromemdb"
	"research-rag/internal/config"
	"research-rag/internal/models"
	"research-rag/internal/parser"
	"research-rag/internal/vectorstore"
)

type countingEmbedder struct {
	texts int
}

func unitVector(s string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	a := float64(h.Sum32()%3600) / 3600 * 2 * math.Pi
	return []float32{float32(math.Cos(a)), float32(math.Sin(a))}
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = unitVector(t)
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return unitVector(text), nil
}

type fixture struct {
	svc      *Service
	store    vectorstore.Store
	embedder *countingEmbedder
	docs     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Documents.Path = filepath.Join(dir, "papers")
	require.NoError(t, os.MkdirAll(cfg.Documents.Path, 0o755))

	store, err := chromemdb.NewVectorDBManager("", cfg.Library.Name, false, "", func(context.Context, string) ([]float32, error) {
		return nil, errors.New("unexpected embed call")
	})
	require.NoError(t, err)
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	e := &countingEmbedder{}
	return &fixture{
		svc:      NewService(cfg, parser.New(cfg.RAG), e, store, cat, nil),
		store:    store,
		embedder: e,
		docs:     cfg.Documents.Path,
	}
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.docs, name), []byte(content), 0o644))
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func statuses(r *models.IngestReport) map[string]string {
	out := make(map[string]string, len(r.Files))
	for _, f := range r.Files {
		out[f.Filename] = f.Status
	}
	return out
}

func TestProcessNoDocuments(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestSave(t *testing.T) {
	f := newFixture(t)
	results := f.svc.Save([]models.Document{
		{Filename: "photo.txt", Data: []byte("Photosynthesis converts light into chemical energy.")},
		{Filename: "../../escape.md", Data: []byte("# Title")},
		{Filename: "tool.exe", Data: []byte("MZ")},
		{Filename: "empty.pdf"},
	})
	require.Len(t, results, 4)

	assert.Equal(t, models.StatusSaved, results[0].Status)
	assert.Equal(t, "escape.md", results[1].Filename)
	assert.Equal(t, models.StatusSaved, results[1].Status)
	assert.Equal(t, models.StatusSkipped, results[2].Status)
	assert.Contains(t, results[2].Error, "unsupported")
	assert.Equal(t, models.StatusSkipped, results[3].Status)

	assert.FileExists(t, filepath.Join(f.docs, "photo.txt"))
	assert.FileExists(t, filepath.Join(f.docs, "escape.md"))
	assert.NoFileExists(t, filepath.Join(f.docs, "tool.exe"))
}

func TestProcessThenCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, "photo.txt", "Photosynthesis converts light into chemical energy.")
	f.write(t, "cells.md", "# Cells\n\nMitochondria are the powerhouse of the cell.")

	report, err := f.svc.Process(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"photo.txt": models.StatusIngested, "cells.md": models.StatusIngested}, statuses(report))
	assert.Empty(t, report.Failed())
	first := f.count(t)
	assert.Positive(t, first)
	assert.Equal(t, first, report.TotalChunks)
	embedded := f.embedder.texts

	report, err = f.svc.Process(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"photo.txt": models.StatusCached, "cells.md": models.StatusCached}, statuses(report))
	assert.Equal(t, first, f.count(t))
	assert.Equal(t, embedded, f.embedder.texts)
}

func TestProcessChangedFileReplacesChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, "notes.txt", "first version of the notes")

	_, err := f.svc.Process(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, f.count(t))

	f.write(t, "notes.txt", "second version of the notes, slightly longer")
	report, err := f.svc.Process(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIngested, statuses(report)["notes.txt"])
	assert.Equal(t, 1, f.count(t))
}

func TestProcessForceRebuilds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, "photo.txt", "Photosynthesis converts light into chemical energy.")

	_, err := f.svc.Process(ctx, false)
	require.NoError(t, err)
	n := f.count(t)

	report, err := f.svc.Process(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.Rebuilt)
	assert.Equal(t, models.StatusIngested, statuses(report)["photo.txt"])
	assert.Equal(t, n, f.count(t))
}

func TestProcessFailureDoesNotStopBatch(t *testing.T) {
	f := newFixture(t)
	f.write(t, "broken.pdf", "this is not a pdf")
	f.write(t, "empty.txt", "")
	f.write(t, "good.txt", "Plain text survives.")

	report, err := f.svc.Process(context.Background(), false)
	require.NoError(t, err)
	got := statuses(report)
	assert.Equal(t, models.StatusFailed, got["broken.pdf"])
	assert.Equal(t, models.StatusSkipped, got["empty.txt"])
	assert.Equal(t, models.StatusIngested, got["good.txt"])
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, 1, f.count(t))
}

func TestStatusPendingAndPrune(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, "a.txt", "alpha text")

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, st.Pending)
	assert.Zero(t, st.Chunks)

	_, err = f.svc.Process(ctx, false)
	require.NoError(t, err)
	f.write(t, "b.txt", "beta text")

	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, st.Pending)
	require.Len(t, st.Documents, 1)
	assert.Equal(t, "a.txt", st.Documents[0].Filename)

	require.NoError(t, os.Remove(filepath.Join(f.docs, "a.txt")))
	_, err = f.svc.Process(ctx, false)
	require.NoError(t, err)

	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Documents, 1)
	assert.Equal(t, "b.txt", st.Documents[0].Filename)
	assert.Equal(t, 1, st.Chunks)
}

func TestStatusSameSizeEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, "a.txt", "alpha text")
	_, err := f.svc.Process(ctx, false)
	require.NoError(t, err)

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Pending)

	// same length, different content, saved "later"
	path := filepath.Join(f.docs, "a.txt")
	f.write(t, "a.txt", "alpha tent")
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, st.Pending)

	report, err := f.svc.Process(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIngested, statuses(report)["a.txt"])

	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Pending)

	// touched without changes: served from cache, then no longer pending
	later = later.Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, st.Pending)

	report, err = f.svc.Process(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCached, statuses(report)["a.txt"])

	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Pending)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, "a.txt", strings.Repeat("words and more words. ", 50))

	_, err := f.svc.Process(ctx, false)
	require.NoError(t, err)
	require.Positive(t, f.count(t))

	require.NoError(t, f.svc.Reset(ctx))
	assert.Zero(t, f.count(t))
	assert.FileExists(t, filepath.Join(f.docs, "a.txt"))

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Documents)
	assert.Equal(t, []string{"a.txt"}, st.Pending)
}
