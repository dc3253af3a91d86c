package models

import "time"

// Corpus selects which granularity a nearest-neighbor query runs over.
type Corpus string

const (
	CorpusDocuments Corpus = "document"
	CorpusChunks    Corpus = "chunk"
)

// Document is an ingested file. Embedding is nil when the document was chunked.
type Document struct {
	ID        string
	Filename  string
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// Chunk is a persisted, embedded slice of a Document.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
	CreatedAt  time.Time
}

// RetrievalHit is a per-query projection of a Document or a Chunk. For
// chunk hits DocumentID is the parent document.
type RetrievalHit struct {
	SourceID   string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
	Distance   float64   `json:"distance"`
	Type       Corpus    `json:"type"`
	ChunkIndex *int      `json:"chunk_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatTurn is one prior message of the conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a user-facing citation.
type Source struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
	Excerpt    string  `json:"excerpt"`
}

// Usage is the token accounting reported by the generation provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is a generated, grounded response.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Usage   *Usage   `json:"usage"`
}

// PromptResponse is the outcome of a search. AI is nil for similarity-only results.
type PromptResponse struct {
	Query     string         `json:"query"`
	Documents []RetrievalHit `json:"documents"`
	AI        *Answer        `json:"ai_response,omitempty"`
	UseAI     bool           `json:"use_ai"`
	Warning   string         `json:"warning,omitempty"`
}
