package domain

import (
	"context"
	"time"
)

// Document is the extracted plain text of one uploaded file attached to a subject.
type Document struct {
	SubjectID string
	ID        string
	Name      string
	Text      string
	CreatedAt time.Time
}

// Chunk is a fixed-size span of a document, the unit of embedding and retrieval.
type Chunk struct {
	SubjectID  string
	DocumentID string
	Index      int
	Text       string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Role names a chat turn author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn sent to a generation backend.
type Message struct {
	Role    Role
	Content string
}

// Question is one normalized multiple-choice question. Options always has four entries
// and Answer matches one of them.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// Quiz is an append-only record of questions generated for a subject.
type Quiz struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subject_id"`
	CreatedAt time.Time  `json:"created_at"`
	Questions []Question `json:"questions"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts text into fixed-dimension vectors for documents and queries.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is a text-generation backend. CompleteJSON returns the raw model output;
// callers are responsible for structural validation.
type Generator interface {
	CompleteChat(ctx context.Context, messages []Message) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
