// Package memory implements the document and quiz stores in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyrag/internal/domain"
	"studyrag/internal/store"
)

var (
	_ store.DocumentStore = (*Documents)(nil)
	_ store.QuizStore     = (*Quizzes)(nil)
)

type Documents struct {
	mu   sync.RWMutex
	docs map[string][]domain.Document
}

func NewDocuments() *Documents { return &Documents{docs: make(map[string][]domain.Document)} }

func (d *Documents) Put(_ context.Context, doc domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.docs[doc.SubjectID]
	for i := range list {
		if list[i].ID == doc.ID {
			list[i] = doc
			return nil
		}
	}
	d.docs[doc.SubjectID] = append(list, doc)
	return nil
}

func (d *Documents) List(_ context.Context, subjectID string) ([]domain.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Document, len(d.docs[subjectID]))
	copy(out, d.docs[subjectID])
	return out, nil
}

func (d *Documents) Delete(_ context.Context, subjectID, documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.docs[subjectID]
	for i := range list {
		if list[i].ID == documentID {
			d.docs[subjectID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrDocumentNotFound
}

type Quizzes struct {
	mu      sync.RWMutex
	quizzes map[string][]domain.Quiz
}

func NewQuizzes() *Quizzes { return &Quizzes{quizzes: make(map[string][]domain.Quiz)} }

func (q *Quizzes) Append(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quizzes[quiz.SubjectID] = append(q.quizzes[quiz.SubjectID], quiz)
	return quiz, nil
}

func (q *Quizzes) Current(_ context.Context, subjectID string) (domain.Quiz, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	list := q.quizzes[subjectID]
	if len(list) == 0 {
		return domain.Quiz{}, store.ErrQuizNotFound
	}
	return list[len(list)-1], nil
}

func (q *Quizzes) List(_ context.Context, subjectID string) ([]domain.Quiz, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]domain.Quiz, len(q.quizzes[subjectID]))
	copy(out, q.quizzes[subjectID])
	return out, nil
}
