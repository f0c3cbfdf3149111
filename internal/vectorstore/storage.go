// Package vectorstore persists chunk vectors per subject and answers nearest-neighbour queries.
package vectorstore

import (
	"context"
	"errors"

	"studyrag/internal/domain"
)

var (
	ErrLengthMismatch    = errors.New("chunks and vectors length mismatch")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Storage persists vectors and supports similarity search scoped to one subject.
// Upsert replaces everything previously stored for (subjectID, documentID) and
// leaves other documents untouched.
type Storage interface {
	Upsert(ctx context.Context, subjectID, documentID string, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, subjectID string, vector []float32, k int) ([]domain.SearchResult, error)
	Count(ctx context.Context, subjectID string) (int, error)
	DeleteDocument(ctx context.Context, subjectID, documentID string) error
	Close() error
}

// CheckBatch validates an upsert batch.
func CheckBatch(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	for _, v := range vectors {
		if len(v) != len(vectors[0]) || len(v) == 0 {
			return ErrDimensionMismatch
		}
	}
	return nil
}
