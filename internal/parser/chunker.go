package parser

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"research-rag/internal/models"
)

// get chunks from content and page number
func (p *ParserConfig) getChunks(content string, pageNumber int) []models.Chunk {
	var chunkStrings []string
	if p.Config.ChunkStrategy == "simple" {
		chunkStrings = chunkContent(content, p.Config.ChunkSize, p.Config.ChunkOverlap)
	} else {
		chunkStrings = p.smartChunks(content)
	}

	var chunks []models.Chunk
	for _, chunkString := range chunkStrings {
		chunks = append(chunks, models.Chunk{
			Content:    chunkString,
			PageNumber: pageNumber,
			ChunkID:    len(chunks) + 1,
		})
	}
	return chunks
}

// smartChunks splits on paragraph, line, sentence and word boundaries first and
// only falls back to a hard window for pieces above MaxChunkSize.
func (p *ParserConfig) smartChunks(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.Config.ChunkSize),
		textsplitter.WithChunkOverlap(p.Config.ChunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)
	parts, err := splitter.SplitText(content)
	if err != nil {
		log.Warn().Err(err).Msg("recursive splitter failed, using fixed windows")
		return chunkContent(content, p.Config.ChunkSize, p.Config.ChunkOverlap)
	}

	var out []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len([]rune(part)) > p.Config.MaxChunkSize {
			out = append(out, chunkContent(part, p.Config.MaxChunkSize, p.Config.ChunkOverlap)...)
			continue
		}
		out = append(out, part)
	}
	return out
}

// chunk content into chunks with maxChars and overlapChars, counted in runes
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// Look for a space or punctuation within the last 10% of the chunk
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}

		next := end - overlapChars
		if next <= start {
			next = start + maxChars - overlapChars
		}
		start = next
	}
	return chunks
}
