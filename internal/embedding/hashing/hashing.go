package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"studyrag/internal/embedding"
	"studyrag/internal/textutil"
)

// DefaultDimension matches the output size of small sentence-transformer models.
const DefaultDimension = 384

// Embedder is a local bag-of-words embedder using signed feature hashing.
// Unlike TF-IDF it needs no corpus preparation, so vectors from separate uploads
// stay comparable and the dimension never changes.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder; dimension <= 0 selects DefaultDimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedDocuments embeds each text independently.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *Embedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	tf := make(map[string]int)
	for _, tok := range textutil.Terms(text) {
		tf[tok]++
	}
	if len(tf) == 0 {
		return vec
	}
	for tok, count := range tf {
		idx, sign := e.bucket(tok)
		// Sublinear term frequency
		vec[idx] += sign * float32(1+math.Log(float64(count)))
	}
	return embedding.Normalize(vec)
}

func (e *Embedder) bucket(tok string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}
