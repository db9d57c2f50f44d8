package web

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"research-rag/internal/ingest"
	"research-rag/internal/models"
	"research-rag/internal/rag"
)

const indexTemplate = "index.html"

type pageData struct {
	Library    string
	Status     *models.LibraryStatus
	Accept     string
	Uploads    []models.FileResult
	Report     *models.IngestReport
	Query      string
	Answer     *models.PromptResponse
	AnswerHTML template.HTML
	Success    string
	Warning    string
	Error      string
}

func (h *Handler) newPage(c *gin.Context) *pageData {
	p := &pageData{
		Library: h.app.Config.Library.Name,
		Accept:  strings.Join(h.app.Config.Documents.AllowedExtensions, ","),
	}
	st, err := h.app.Ingest.Status(c.Request.Context())
	if err != nil {
		p.Error = fmt.Sprintf("Failed to load library %q: %v", p.Library, err)
		return p
	}
	p.Status = st
	return p
}

func (h *Handler) render(c *gin.Context, p *pageData) {
	c.HTML(http.StatusOK, indexTemplate, p)
}

func (h *Handler) Index(c *gin.Context) {
	p := h.newPage(c)
	if p.Status != nil && p.Status.Chunks == 0 {
		p.Warning = "The library is empty. Upload documents and click \"Process & Embed Documents\" to create it."
	}
	h.render(c, p)
}

func (h *Handler) Upload(c *gin.Context) {
	docs, err := readUploads(c)
	if err != nil {
		p := h.newPage(c)
		p.Error = err.Error()
		h.render(c, p)
		return
	}

	results := h.app.Ingest.Save(docs)
	p := h.newPage(c)
	p.Uploads = results
	if saved := countStatus(results, models.StatusSaved); saved > 0 {
		p.Success = fmt.Sprintf("%d file(s) uploaded successfully!", saved)
	}
	if rejected := len(results) - countStatus(results, models.StatusSaved); rejected > 0 {
		p.Warning = fmt.Sprintf("%d file(s) were rejected.", rejected)
	}
	h.render(c, p)
}

func (h *Handler) Process(c *gin.Context) {
	force := c.PostForm("force") != ""
	report, err := h.app.Ingest.Process(c.Request.Context(), force)

	p := h.newPage(c)
	switch {
	case errors.Is(err, ingest.ErrNoDocuments):
		p.Warning = "No files found in the documents folder. Please upload documents first."
	case err != nil:
		_ = c.Error(err)
		p.Error = fmt.Sprintf("Processing failed: %v", err)
	default:
		p.Report = report
		p.Success = fmt.Sprintf("Library %q is ready with %d chunks.", report.Library, report.TotalChunks)
		if failed := len(report.Failed()); failed > 0 {
			p.Warning = fmt.Sprintf("%d file(s) could not be processed.", failed)
		}
	}
	h.render(c, p)
}

func (h *Handler) Ask(c *gin.Context) {
	query := strings.TrimSpace(c.PostForm("query"))
	res, err := h.app.RAG.Ask(c.Request.Context(), query)

	p := h.newPage(c)
	p.Query = query
	switch {
	case errors.Is(err, rag.ErrEmptyQuery):
		p.Warning = "Please enter a question."
	case errors.Is(err, rag.ErrEmptyLibrary):
		p.Warning = "The library is empty. Upload documents and click \"Process & Embed Documents\" to create it."
	case errors.Is(err, rag.ErrNoContext):
		p.Error = "Could not find any relevant information in the provided documents for your query."
	case err != nil:
		_ = c.Error(err)
		p.Error = err.Error()
	default:
		p.Answer = res
		p.AnswerHTML = template.HTML(res.HTML)
	}
	h.render(c, p)
}

// readUploads reads every file of the "files" form field.
func readUploads(c *gin.Context) ([]models.Document, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("no files selected")
	}
	docs := make([]models.Document, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			log.Error().Err(err).Str("file", fh.Filename).Msg("Reading upload failed")
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		docs = append(docs, models.Document{Filename: fh.Filename, Data: data})
	}
	return docs, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func countStatus(results []models.FileResult, status string) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
