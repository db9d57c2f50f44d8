package models

const (
	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`

	MetaSource  = "source"
	MetaPage    = "page"
	MetaChunkID = "chunk_id"
)

// status values of a FileResult
const (
	StatusIngested = "ingested"
	StatusCached   = "cached"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
	StatusSaved    = "saved"
)

var (
	SystemPrompt = `You are a world-renowned scientific genius. Your intellect is unparalleled.
Answer using only the documents provided by the user. Never invent facts that are not in them.`

	PromptTemplate = `Based *only* on the provided context from research papers, provide a clear, concise, and accurate answer to the query.
If the context does not contain the answer, state that clearly.
Format your response in neatly structured markdown.

Context:
%s

Query:
%s

Reply:
`
)
