package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/generation"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"content": content}}},
	})
}

func TestCompleteChat_SendsTurnsAndHeaders(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultTitle, r.Header.Get("X-Title"))
		assert.NotEmpty(t, r.Header.Get("HTTP-Referer"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultChatModel, req.Model)
		assert.Equal(t, 500, req.MaxTokens)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		reply(w, "Photosynthesis makes sugar.")
	})

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	out, err := c.CompleteChat(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "q"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis makes sugar.", out)
}

func TestCompleteJSON_UsesStrictSystemTurn(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultJSONModel, req.Model)
		assert.Equal(t, 1200, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, generation.StrictJSONSystemPrompt, req.Messages[0].Content)
		assert.Equal(t, "make a quiz", req.Messages[1].Content)
		reply(w, "[]")
	})

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	out, err := c.CompleteJSON(context.Background(), "make a quiz")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestComplete_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    error
	}{
		{
			name:    "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			want:    domain.ErrGenerationProvider,
		},
		{
			name: "provider error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			},
			want: domain.ErrGenerationProvider,
		},
		{
			name:    "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"choices":[]}`)) },
			want:    domain.ErrGenerationProvider,
		},
		{
			name: "slow provider",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    domain.ErrGenerationTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.handler)
			c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", ChatTimeout: tt.timeout})
			require.NoError(t, err)
			_, err = c.CompleteChat(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewClient_RequiresKeyForRemote(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://localhost:11434/v1"})
	assert.NoError(t, err)
}
