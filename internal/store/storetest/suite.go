// Package storetest holds behaviour suites shared by the store backends.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/store"
)

func sampleQuestions(text string) []domain.Question {
	return []domain.Question{{Text: text, Options: []string{"a", "b", "c", "d"}, Answer: "a"}}
}

// RunDocuments exercises a DocumentStore built by newStore.
func RunDocuments(t *testing.T, newStore func(t *testing.T) store.DocumentStore) {
	t.Run("put and list in upload order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, domain.Document{SubjectID: "bio", ID: "d1", Name: "a.txt", Text: "one"}))
		require.NoError(t, s.Put(ctx, domain.Document{SubjectID: "bio", ID: "d2", Name: "b.txt", Text: "two"}))
		require.NoError(t, s.Put(ctx, domain.Document{SubjectID: "chem", ID: "d3", Name: "c.txt", Text: "three"}))

		docs, err := s.List(ctx, "bio")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "d1", docs[0].ID)
		assert.Equal(t, "two", docs[1].Text)
		assert.False(t, docs[0].CreatedAt.IsZero())
	})

	t.Run("put replaces same id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, domain.Document{SubjectID: "bio", ID: "d1", Name: "a.txt", Text: "old"}))
		require.NoError(t, s.Put(ctx, domain.Document{SubjectID: "bio", ID: "d1", Name: "a.txt", Text: "new"}))

		docs, err := s.List(ctx, "bio")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "new", docs[0].Text)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, domain.Document{SubjectID: "bio", ID: "d1", Name: "a.txt", Text: "x"}))
		require.NoError(t, s.Delete(ctx, "bio", "d1"))
		assert.ErrorIs(t, s.Delete(ctx, "bio", "d1"), store.ErrDocumentNotFound)

		docs, err := s.List(ctx, "bio")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

// RunQuizzes exercises a QuizStore built by newStore.
func RunQuizzes(t *testing.T, newStore func(t *testing.T) store.QuizStore) {
	t.Run("current is the newest", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Current(ctx, "bio")
		assert.ErrorIs(t, err, store.ErrQuizNotFound)

		first, err := s.Append(ctx, domain.Quiz{SubjectID: "bio", Questions: sampleQuestions("q1")})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		second, err := s.Append(ctx, domain.Quiz{SubjectID: "bio", Questions: sampleQuestions("q2")})
		require.NoError(t, err)

		cur, err := s.Current(ctx, "bio")
		require.NoError(t, err)
		assert.Equal(t, second.ID, cur.ID)
		assert.Equal(t, "q2", cur.Questions[0].Text)
		assert.Equal(t, []string{"a", "b", "c", "d"}, cur.Questions[0].Options)

		all, err := s.List(ctx, "bio")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first.ID, all[0].ID)
	})

	t.Run("subjects are independent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Append(ctx, domain.Quiz{SubjectID: "bio", CreatedAt: time.Now(), Questions: sampleQuestions("q")})
		require.NoError(t, err)
		_, err = s.Current(ctx, "chem")
		assert.ErrorIs(t, err, store.ErrQuizNotFound)
	})
}
