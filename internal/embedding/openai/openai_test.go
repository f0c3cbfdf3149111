package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedDocuments_BatchesAndKeepsOrder(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			data[i] = item{Index: i, Embedding: []float32{float32(len(in)), 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, c.Dimension())
}

func TestEmbedQuery_OllamaShape(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	})
	c, err := NewClient(Config{BaseURL: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)

	v, err := c.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "openai:nomic-embed-text", c.Name())
}

func TestEmbedQuery_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	})
	c, err := NewClient(Config{BaseURL: srv.URL, MaxRetries: 2})
	require.NoError(t, err)

	v, err := c.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedQuery_ClientErrorIsIndexUnavailable(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c, err := NewClient(Config{BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	_, err = c.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestEmbedQuery_UnreachableIsIndexUnavailable(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", MaxRetries: 0})
	require.NoError(t, err)

	_, err = c.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestNewClient_RequiresKeyForOpenAI(t *testing.T) {
	t.Setenv("STUDYRAG_TEST_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "STUDYRAG_TEST_EMPTY_KEY"})
	assert.Error(t, err)
}

func TestEmbedDocuments_Empty(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://unused"})
	require.NoError(t, err)
	out, err := c.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
