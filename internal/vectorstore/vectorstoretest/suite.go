// Package vectorstoretest holds a behaviour suite shared by every vectorstore.Storage backend.
package vectorstoretest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

// Chunks builds n chunks of documentID with predictable text.
func Chunks(subjectID, documentID string, n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{
			SubjectID:  subjectID,
			DocumentID: documentID,
			Index:      i,
			Text:       fmt.Sprintf("%s-%d", documentID, i),
		}
	}
	return out
}

// Run exercises newStorage against the Storage contract. newStorage must return an empty store.
func Run(t *testing.T, newStorage func(t *testing.T) vectorstore.Storage) {
	t.Run("search ranks by similarity", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "bio", "d1", Chunks("bio", "d1", 3), [][]float32{
			{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		}))

		got, err := s.Search(ctx, "bio", []float32{0, 1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "d1-1", got[0].Chunk.Text)
		assert.InDelta(t, 1.0, got[0].Score, 1e-6)
		assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	})

	t.Run("subjects are isolated", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "bio", "d1", Chunks("bio", "d1", 1), [][]float32{{1, 0}}))
		require.NoError(t, s.Upsert(ctx, "chem", "d2", Chunks("chem", "d2", 1), [][]float32{{1, 0}}))

		got, err := s.Search(ctx, "chem", []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "chem", got[0].Chunk.SubjectID)

		n, err := s.Count(ctx, "physics")
		require.NoError(t, err)
		assert.Zero(t, n)
		got, err = s.Search(ctx, "physics", []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("re-upserting a document replaces it", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "bio", "d1", Chunks("bio", "d1", 3), [][]float32{{1, 0}, {1, 0}, {1, 0}}))
		require.NoError(t, s.Upsert(ctx, "bio", "d1", Chunks("bio", "d1", 2), [][]float32{{1, 0}, {1, 0}}))

		n, err := s.Count(ctx, "bio")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("appending keeps earlier documents", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "bio", "d1", Chunks("bio", "d1", 2), [][]float32{{1, 0}, {0, 1}}))
		require.NoError(t, s.Upsert(ctx, "bio", "d2", Chunks("bio", "d2", 1), [][]float32{{1, 1}}))

		n, err := s.Count(ctx, "bio")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("ties resolve by document order then index", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "bio", "first", Chunks("bio", "first", 2), [][]float32{{1, 0}, {1, 0}}))
		require.NoError(t, s.Upsert(ctx, "bio", "second", Chunks("bio", "second", 1), [][]float32{{1, 0}}))

		got, err := s.Search(ctx, "bio", []float32{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"first-0", "first-1", "second-0"},
			[]string{got[0].Chunk.Text, got[1].Chunk.Text, got[2].Chunk.Text})
	})

	t.Run("delete document", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "bio", "d1", Chunks("bio", "d1", 2), [][]float32{{1, 0}, {0, 1}}))
		require.NoError(t, s.Upsert(ctx, "bio", "d2", Chunks("bio", "d2", 1), [][]float32{{1, 1}}))
		require.NoError(t, s.DeleteDocument(ctx, "bio", "d1"))
		require.NoError(t, s.DeleteDocument(ctx, "bio", "missing"))

		n, err := s.Count(ctx, "bio")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rejects mismatched batches", func(t *testing.T) {
		s := newStorage(t)
		err := s.Upsert(context.Background(), "bio", "d1", Chunks("bio", "d1", 2), [][]float32{{1, 0}})
		assert.ErrorIs(t, err, vectorstore.ErrLengthMismatch)
	})

	t.Run("concurrent writers on different subjects", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				subject := fmt.Sprintf("s%d", i)
				assert.NoError(t, s.Upsert(ctx, subject, "d", Chunks(subject, "d", 2), [][]float32{{1, 0}, {0, 1}}))
			}(i)
		}
		wg.Wait()
		for i := 0; i < 8; i++ {
			n, err := s.Count(ctx, fmt.Sprintf("s%d", i))
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		}
	})
}
