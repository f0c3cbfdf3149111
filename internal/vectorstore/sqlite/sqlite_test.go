package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/sqlitedb"
	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/vectorstoretest"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })
	return NewStorage(db)
}

func TestStorage(t *testing.T) {
	vectorstoretest.Run(t, func(t *testing.T) vectorstore.Storage { return newTestStorage(t) })
}

func TestStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	db, err := sqlitedb.Open(path)
	require.NoError(t, err)
	require.NoError(t, NewStorage(db).Upsert(ctx, "bio", "d1",
		vectorstoretest.Chunks("bio", "d1", 2), [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, db.Close())

	db, err = sqlitedb.Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := NewStorage(db).Search(ctx, "bio", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1-1", got[0].Chunk.Text)
}

func TestStorage_DimensionMismatch(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "bio", "d1", vectorstoretest.Chunks("bio", "d1", 1), [][]float32{{1, 0}}))

	err := s.Upsert(ctx, "bio", "d2", vectorstoretest.Chunks("bio", "d2", 1), [][]float32{{1, 0, 0}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}
