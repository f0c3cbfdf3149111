package chunker

import (
	"studyrag/internal/domain"
)

// DefaultChunkSize is the span length, in runes, used when none is configured.
const DefaultChunkSize = 800

// FixedSizeChunker slices text into consecutive spans of a fixed rune length with no
// overlap. The last span may be shorter.
type FixedSizeChunker struct {
	size int
}

func NewFixedSizeChunker(size int) *FixedSizeChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &FixedSizeChunker{size: size}
}

// Size returns the configured span length in runes.
func (c *FixedSizeChunker) Size() int { return c.size }

// Chunk returns domain.ErrEmptyInput when the document has no text.
func (c *FixedSizeChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	spans := Split(document.Text, c.size)
	if len(spans) == 0 {
		return nil, domain.ErrEmptyInput
	}
	chunks := make([]domain.Chunk, len(spans))
	for i, text := range spans {
		chunks[i] = domain.Chunk{
			SubjectID:  document.SubjectID,
			DocumentID: document.ID,
			Index:      i,
			Text:       text,
		}
	}
	return chunks, nil
}

// Split cuts text into spans of at most size runes. Joining the spans yields text.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	var spans []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			spans = append(spans, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(spans, text[start:])
}
