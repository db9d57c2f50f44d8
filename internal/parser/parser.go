package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"research-rag/internal/config"
	"research-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyDocument     = errors.New("document is empty")
	ErrNoText            = errors.New("no extractable text")
)

type Parser interface {
	Parse(doc models.Document) ([]models.Chunk, error)
}

type ParserConfig struct {
	Config config.RAGConfig
}

const (
	defaultChunkSize    = 400
	defaultMaxChunkSize = 600
	defaultChunkOverlap = 50
	defaultPageNumber   = 1
)

var (
	xmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	slideNumberRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// New returns a parser, filling zero chunk settings with defaults.
func New(cfg config.RAGConfig) *ParserConfig {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxChunkSize < cfg.ChunkSize {
		cfg.MaxChunkSize = max(defaultMaxChunkSize, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(defaultChunkOverlap, cfg.ChunkSize/2)
	}
	return &ParserConfig{Config: cfg}
}

// Supported reports whether ext (with leading dot) has a parser.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".txt", ".md", ".pptx", ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	}
	return false
}

// Parse extracts text from doc and splits it into chunks. Chunk ids are not
// assigned here.
func (p *ParserConfig) Parse(doc models.Document) (chunks []models.Chunk, err error) {
	if len(bytes.TrimSpace(doc.Data)) == 0 {
		return nil, ErrEmptyDocument
	}
	ext := doc.Ext()
	if !Supported(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			err = fmt.Errorf("corrupt %s file: %v", ext, r)
		}
	}()

	var pages []page
	switch ext {
	case ".pdf":
		pages, err = parsePDF(doc.Data)
	case ".docx":
		pages, err = parseDOCX(doc.Data)
	case ".pptx":
		pages, err = parsePPTX(doc.Data)
	case ".xlsx":
		pages, err = parseXLSX(doc.Data)
	case ".xlsm", ".xltx", ".xltm":
		pages, err = parseExcelize(doc.Data)
	case ".md":
		pages = []page{{number: defaultPageNumber, text: markdownText(doc.Data)}}
	case ".txt":
		pages = []page{{number: defaultPageNumber, text: string(doc.Data)}}
	}
	if err != nil {
		return nil, err
	}

	for _, pg := range pages {
		for _, c := range p.getChunks(pg.text, pg.number) {
			c.SourceFilename = doc.Filename
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	return chunks, nil
}

type page struct {
	number int
	text   string
}

func parsePDF(data []byte) ([]page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var pages []page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		pg := reader.Page(i)
		if pg.V.IsNull() {
			continue
		}
		pageText, err := pg.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, page{number: i, text: pageText})
	}
	return pages, nil
}

func parseDOCX(data []byte) ([]page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return []page{{number: defaultPageNumber, text: wordprocessingText(content)}}, nil
}

// wordprocessingText turns document.xml into plain text, one line per paragraph.
func wordprocessingText(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = strings.ReplaceAll(content, "<w:tab/>", "\t")
	content = strings.ReplaceAll(content, "<w:br/>", "\n")
	content = xmlTagRe.ReplaceAllString(content, "")
	return html.UnescapeString(content)
}

func parsePPTX(data []byte) ([]page, error) {
	f, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var pages []page
	for _, file := range f.File {
		m := slideNumberRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, page{number: n, text: extractTextFromXML(string(raw))})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, nil
}

func parseXLSX(data []byte) ([]page, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, err
	}

	var pages []page
	for sheetNum, sheet := range f.Sheets {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				b.WriteString(cell.String() + "\t")
			}
			b.WriteString("\n")
		}
		pages = append(pages, page{number: sheetNum + 1, text: b.String()})
	}
	return pages, nil
}

// parseExcelize handles the macro and template workbook flavours.
func parseExcelize(data []byte) ([]page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		pages = append(pages, page{number: sheetNum + 1, text: b.String()})
	}
	return pages, nil
}

// markdownText walks the goldmark AST and keeps only the text, one line per block.
func markdownText(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteString(" ")
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return blankLinesRe.ReplaceAllString(b.String(), "\n\n")
}

func extractTextFromXML(xmlContent string) string {
	var b strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			b.WriteString(html.UnescapeString(part[:endIdx]) + " ")
		}
	}
	return b.String()
}

// Filename strips directories from an uploaded name.
func Filename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return path.Base(name)
}
