// Package sqlite stores chunk vectors as float32 blobs in SQLite and scores them in process.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage reads and writes the chunks and indexed_documents tables.
// The *sql.DB is owned by the caller; Close does not close it.
type Storage struct {
	db *sql.DB
}

func NewStorage(db *sql.DB) *Storage { return &Storage{db: db} }

func (s *Storage) Upsert(ctx context.Context, subjectID, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return s.DeleteDocument(ctx, subjectID, documentID)
	}
	if dim, err := s.dimension(ctx, subjectID, documentID); err != nil {
		return err
	} else if dim != 0 && dim != len(vectors[0]) {
		return vectorstore.ErrDimensionMismatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO indexed_documents (subject_id, document_id) VALUES (?, ?)
	`, subjectID, documentID); err != nil {
		return fmt.Errorf("registering document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE subject_id = ? AND document_id = ?
	`, subjectID, documentID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (subject_id, document_id, idx, text, vector) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, subjectID, documentID, c.Index, c.Text, embedding.EncodeVector(vectors[i])); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// dimension returns the vector size stored for the subject by documents other than documentID.
func (s *Storage) dimension(ctx context.Context, subjectID, documentID string) (int, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT vector FROM chunks WHERE subject_id = ? AND document_id <> ? LIMIT 1
	`, subjectID, documentID).Scan(&blob)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading stored dimension: %w", err)
	}
	return len(blob) / 4, nil
}

func (s *Storage) Search(ctx context.Context, subjectID string, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 3
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, c.idx, c.text, c.vector, d.seq
		FROM chunks c
		JOIN indexed_documents d ON d.subject_id = c.subject_id AND d.document_id = c.document_id
		WHERE c.subject_id = ?
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var cands []vectorstore.Candidate
	for rows.Next() {
		var (
			chunk = domain.Chunk{SubjectID: subjectID}
			blob  []byte
			seq   int64
		)
		if err := rows.Scan(&chunk.DocumentID, &chunk.Index, &chunk.Text, &blob, &seq); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := embedding.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		if len(vec) != len(vector) {
			return nil, vectorstore.ErrDimensionMismatch
		}
		cands = append(cands, vectorstore.Candidate{
			Result:   domain.SearchResult{Chunk: chunk, Score: embedding.Cosine(vec, vector)},
			DocOrder: seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return vectorstore.TopK(cands, k), nil
}

func (s *Storage) Count(ctx context.Context, subjectID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE subject_id = ?`, subjectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

func (s *Storage) DeleteDocument(ctx context.Context, subjectID, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE subject_id = ? AND document_id = ?`, subjectID, documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM indexed_documents WHERE subject_id = ? AND document_id = ?`, subjectID, documentID); err != nil {
		return fmt.Errorf("deleting document entry: %w", err)
	}
	return tx.Commit()
}

func (s *Storage) Close() error { return nil }
