package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"studyrag/internal/domain"
)

// maxBatch is the largest batch the Gemini batchEmbedContents endpoint accepts.
const maxBatch = 100

// Embedder produces embeddings with a Google Generative AI embedding model.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// Config configures the Gemini embedder.
type Config struct {
	APIKey    string
	Model     string
	Dimension int
}

// NewEmbedder creates the Gemini client. No network traffic happens until the first call.
func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, domain.OpError(domain.ErrIndexUnavailable, "gemini_init", "create client failed", err)
	}
	return &Embedder{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

func (e *Embedder) Name() string   { return "gemini:" + e.model }
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedQuery embeds a retrieval query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, domain.OpError(domain.ErrIndexUnavailable, "gemini_embed_query", "", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, domain.OpError(domain.ErrIndexUnavailable, "gemini_embed_query", "no embedding returned", nil)
	}
	return resp.Embedding.Values, nil
}

// EmbedDocuments embeds texts as retrieval documents in batches of up to 100.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "gemini_embed_documents"
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, domain.OpError(domain.ErrIndexUnavailable, op, "", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, domain.OpError(domain.ErrIndexUnavailable, op,
				fmt.Sprintf("expected %d embeddings, got %d", end-start, len(resp.Embeddings)), nil)
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
