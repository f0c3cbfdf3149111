// Package index maintains one vector index per subject on top of a vectorstore.Storage.
package index

import (
	"context"
	"errors"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
	"studyrag/internal/vectorstore"
)

// DefaultK is the number of chunks returned by Search when k <= 0.
const DefaultK = 3

// Index embeds chunks and keeps each subject's vectors in storage.
// Writes to one subject are serialized; other subjects proceed in parallel.
type Index struct {
	embedder domain.Embedder
	storage  vectorstore.Storage
	log      *logger.Logger
	locks    keyedMutex
}

func New(embedder domain.Embedder, storage vectorstore.Storage, log *logger.Logger) *Index {
	return &Index{
		embedder: embedder,
		storage:  storage,
		log:      log.With("component", "SubjectIndex"),
	}
}

// Upsert embeds chunks and stores them as the content of documentID, replacing any
// earlier version of that document. Other documents of the subject are kept.
func (ix *Index) Upsert(ctx context.Context, subjectID, documentID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return domain.ErrEmptyInput
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return unavailable("index_upsert", err)
	}

	unlock := ix.locks.Lock(subjectID)
	defer unlock()
	if err := ix.storage.Upsert(ctx, subjectID, documentID, chunks, vectors); err != nil {
		return unavailable("index_upsert", err)
	}
	ix.log.Debug("indexed document", "subject_id", subjectID, "document_id", documentID, "chunks", len(chunks))
	return nil
}

// Remove drops every vector of documentID.
func (ix *Index) Remove(ctx context.Context, subjectID, documentID string) error {
	unlock := ix.locks.Lock(subjectID)
	defer unlock()
	if err := ix.storage.DeleteDocument(ctx, subjectID, documentID); err != nil {
		return unavailable("index_remove", err)
	}
	return nil
}

// Load returns the number of indexed chunks, or domain.ErrIndexNotFound when there are none.
func (ix *Index) Load(ctx context.Context, subjectID string) (int, error) {
	n, err := ix.storage.Count(ctx, subjectID)
	if err != nil {
		return 0, unavailable("index_load", err)
	}
	if n == 0 {
		return 0, domain.OpError(domain.ErrIndexNotFound, "index_load", subjectID, nil)
	}
	return n, nil
}

// Search returns up to k chunks nearest to vector.
func (ix *Index) Search(ctx context.Context, subjectID string, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultK
	}
	res, err := ix.storage.Search(ctx, subjectID, vector, k)
	if err != nil {
		return nil, unavailable("index_search", err)
	}
	return res, nil
}

// EmbedQuery embeds a query with the same embedder used for the chunks.
func (ix *Index) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	v, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, unavailable("index_embed_query", err)
	}
	return v, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrIndexUnavailable) {
		return err
	}
	return domain.OpError(domain.ErrIndexUnavailable, op, "", err)
}
