package memory

import (
	"context"
	"sync"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

type subject struct {
	dimension int
	order     map[string]int64
	docs      map[string][]entry
}

// Storage is an in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu       sync.RWMutex
	seq      int64
	subjects map[string]*subject
}

func NewStorage() *Storage { return &Storage{subjects: make(map[string]*subject)} }

func (s *Storage) Upsert(_ context.Context, subjectID, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return s.DeleteDocument(context.Background(), subjectID, documentID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subjects[subjectID]
	if !ok {
		sub = &subject{order: make(map[string]int64), docs: make(map[string][]entry)}
		s.subjects[subjectID] = sub
	}
	if sub.dimension != 0 && len(vectors[0]) != sub.dimension && !sub.onlyDoc(documentID) {
		return vectorstore.ErrDimensionMismatch
	}
	sub.dimension = len(vectors[0])
	if _, seen := sub.order[documentID]; !seen {
		s.seq++
		sub.order[documentID] = s.seq
	}
	entries := make([]entry, len(chunks))
	for i := range chunks {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		entries[i] = entry{chunk: chunks[i], vector: v}
	}
	sub.docs[documentID] = entries
	return nil
}

// onlyDoc reports whether documentID is the sole document of the subject.
func (sub *subject) onlyDoc(documentID string) bool {
	_, ok := sub.docs[documentID]
	return ok && len(sub.docs) == 1
}

func (s *Storage) Search(_ context.Context, subjectID string, vector []float32, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		k = 3
	}
	sub, ok := s.subjects[subjectID]
	if !ok {
		return nil, nil
	}
	if sub.dimension != 0 && len(vector) != sub.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}
	var cands []vectorstore.Candidate
	for docID, entries := range sub.docs {
		for _, e := range entries {
			cands = append(cands, vectorstore.Candidate{
				Result:   domain.SearchResult{Chunk: e.chunk, Score: embedding.Cosine(e.vector, vector)},
				DocOrder: sub.order[docID],
			})
		}
	}
	return vectorstore.TopK(cands, k), nil
}

func (s *Storage) Count(_ context.Context, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[subjectID]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, entries := range sub.docs {
		n += len(entries)
	}
	return n, nil
}

func (s *Storage) DeleteDocument(_ context.Context, subjectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[subjectID]
	if !ok {
		return nil
	}
	delete(sub.docs, documentID)
	delete(sub.order, documentID)
	if len(sub.docs) == 0 {
		delete(s.subjects, subjectID)
	}
	return nil
}

func (s *Storage) Close() error { return nil }
