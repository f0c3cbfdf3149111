// Package sqlite implements the document and quiz stores on the shared SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
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
	db *sql.DB
}

func NewDocuments(db *sql.DB) *Documents { return &Documents{db: db} }

func (d *Documents) Put(ctx context.Context, doc domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO documents (subject_id, id, name, text, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, id) DO UPDATE SET
			name = excluded.name,
			text = excluded.text
	`, doc.SubjectID, doc.ID, doc.Name, doc.Text, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

func (d *Documents) List(ctx context.Context, subjectID string) ([]domain.Document, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, text, created_at FROM documents
		WHERE subject_id = ?
		ORDER BY rowid
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc := domain.Document{SubjectID: subjectID}
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Text, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (d *Documents) Delete(ctx context.Context, subjectID, documentID string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE subject_id = ? AND id = ?`, subjectID, documentID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

type Quizzes struct {
	db *sql.DB
}

func NewQuizzes(db *sql.DB) *Quizzes { return &Quizzes{db: db} }

func (q *Quizzes) Append(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshalling questions: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO quizzes (id, subject_id, created_at, questions) VALUES (?, ?, ?, ?)
	`, quiz.ID, quiz.SubjectID, quiz.CreatedAt, string(questions))
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("saving quiz: %w", err)
	}
	return quiz, nil
}

func (q *Quizzes) Current(ctx context.Context, subjectID string) (domain.Quiz, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, created_at, questions FROM quizzes
		WHERE subject_id = ?
		ORDER BY seq DESC LIMIT 1
	`, subjectID)
	quiz, err := scanQuiz(row, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, store.ErrQuizNotFound
	}
	return quiz, err
}

func (q *Quizzes) List(ctx context.Context, subjectID string) ([]domain.Quiz, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, created_at, questions FROM quizzes
		WHERE subject_id = ?
		ORDER BY seq
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows, subjectID)
		if err != nil {
			return nil, err
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(s scanner, subjectID string) (domain.Quiz, error) {
	quiz := domain.Quiz{SubjectID: subjectID}
	var questions string
	if err := s.Scan(&quiz.ID, &quiz.CreatedAt, &questions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, fmt.Errorf("scanning quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(questions), &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("decoding questions: %w", err)
	}
	return quiz, nil
}
