// Package retrieval turns a question into the context block handed to the answer generator.
package retrieval

import (
	"context"
	"errors"
	"strings"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
)

// FallbackContext is returned whenever nothing relevant can be retrieved.
const FallbackContext = "No relevant context found in uploaded notes."

const separator = "\n\n"

// Index is the subset of the subject index the builder reads from.
type Index interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Load(ctx context.Context, subjectID string) (int, error)
	Search(ctx context.Context, subjectID string, vector []float32, k int) ([]domain.SearchResult, error)
}

// Builder assembles context from the top-k chunks of a subject.
type Builder struct {
	index Index
	k     int
	log   *logger.Logger
}

// NewBuilder returns a Builder; k <= 0 uses 3.
func NewBuilder(index Index, k int, log *logger.Logger) *Builder {
	if k <= 0 {
		k = 3
	}
	return &Builder{index: index, k: k, log: log.With("component", "ContextBuilder")}
}

// Build never fails. Missing or unreachable indexes and empty results all yield FallbackContext.
func (b *Builder) Build(ctx context.Context, subjectID, query string) string {
	if _, err := b.index.Load(ctx, subjectID); err != nil {
		if !errors.Is(err, domain.ErrIndexNotFound) {
			b.log.Warn("subject index unavailable", "subject_id", subjectID, "error", err)
		}
		return FallbackContext
	}
	vec, err := b.index.EmbedQuery(ctx, query)
	if err != nil {
		b.log.Warn("query embedding failed", "subject_id", subjectID, "error", err)
		return FallbackContext
	}
	results, err := b.index.Search(ctx, subjectID, vec, b.k)
	if err != nil {
		b.log.Warn("subject index search failed", "subject_id", subjectID, "error", err)
		return FallbackContext
	}
	return Join(results)
}

// Join concatenates chunk texts in rank order, or returns FallbackContext for no results.
func Join(results []domain.SearchResult) string {
	if len(results) == 0 {
		return FallbackContext
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Text
	}
	return strings.Join(parts, separator)
}
