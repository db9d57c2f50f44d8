package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is a raw uploaded file. It only lives for the duration of an ingest.
type Document struct {
	Filename string
	Data     []byte
}

func (d Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Filename))
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SourceFilename string    `json:"source_filename"`
	PageNumber     int       `json:"page_number"`
	ChunkID        int       `json:"chunk_id"`
	Embedding      []float32 `json:"-"`
	Similarity     float32   `json:"similarity,omitempty"`
}

type PromptResponse struct {
	Query   string  `json:"query"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	HTML    string  `json:"-"`
	Chunks  []Chunk `json:"chunks"`
}

type FileResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
	Error    string `json:"error,omitempty"`
}

type IngestReport struct {
	Library     string       `json:"library"`
	Files       []FileResult `json:"files"`
	TotalChunks int          `json:"total_chunks"`
	Rebuilt     bool         `json:"rebuilt"`
}

// Failed returns the results that did not make it into the library.
func (r *IngestReport) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Status == StatusFailed || f.Status == StatusSkipped {
			out = append(out, f)
		}
	}
	return out
}

// CatalogEntry records one ingested file of a library.
type CatalogEntry struct {
	Library    string    `db:"library" json:"library"`
	Filename   string    `db:"filename" json:"filename"`
	SHA256     string    `db:"sha256" json:"sha256"`
	Size       int64     `db:"size" json:"size"`
	Chunks     int       `db:"chunks" json:"chunks"`
	IngestedAt time.Time `db:"ingested_at" json:"ingested_at"`
}

type LibraryStatus struct {
	Name      string         `json:"name"`
	Chunks    int            `json:"chunks"`
	Documents []CatalogEntry `json:"documents"`
	Pending   []string       `json:"pending"`
}
