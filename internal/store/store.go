// Package store defines persistence for uploaded documents and generated quizzes.
package store

import (
	"context"
	"errors"

	"studyrag/internal/domain"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// DocumentStore keeps the extracted text of uploaded documents per subject.
// Put replaces a document with the same (SubjectID, ID); List returns documents in upload order.
type DocumentStore interface {
	Put(ctx context.Context, doc domain.Document) error
	List(ctx context.Context, subjectID string) ([]domain.Document, error)
	Delete(ctx context.Context, subjectID, documentID string) error
}

// QuizStore is append-only. Current returns the most recently appended quiz for a subject.
type QuizStore interface {
	Append(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	Current(ctx context.Context, subjectID string) (domain.Quiz, error)
	List(ctx context.Context, subjectID string) ([]domain.Quiz, error)
}
