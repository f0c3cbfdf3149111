package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studyrag/internal/domain"
)

// Client is an OpenAI-compatible embeddings client. It also understands the
// Ollama-native `{"embedding": [...]}` response shape.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	batchSize   int
	concurrency int
	maxRetries  int
	client      *http.Client

	mu        sync.RWMutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
	MaxRetries  int
	// Dimension may be set when known up front; otherwise it is learned from the first response.
	Dimension  int
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
// An API key is optional so local servers such as Ollama work unauthenticated.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.Contains(cfg.BaseURL, "api.openai.com") && key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      key,
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
		client:      httpClient,
		dimension:   cfg.Dimension,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the vector size, or 0 before the first successful call when unconfigured.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// EmbedQuery returns an embedding vector for a single query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedDocuments embeds texts in batches, running up to Concurrency batches at once.
// Output order matches input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func (c *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	const op = "embed"
	data, err := json.Marshal(embeddingsRequest{Input: inputs, Model: c.model})
	if err != nil {
		return nil, domain.OpError(domain.ErrIndexUnavailable, op, "encode request failed", err)
	}
	url := c.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(attempt-1)); err != nil {
				return nil, domain.OpError(domain.ErrIndexUnavailable, op, "canceled during backoff", err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, domain.OpError(domain.ErrIndexUnavailable, op, "build request failed", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.OpError(domain.ErrIndexUnavailable, op, "request aborted", err)
			}
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("embeddings failed: %s", resp.Status)
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && attempt < c.maxRetries {
				if err := sleepCtx(ctx, time.Duration(secs)*time.Second); err != nil {
					return nil, domain.OpError(domain.ErrIndexUnavailable, op, "canceled during backoff", err)
				}
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, domain.OpError(domain.ErrIndexUnavailable, op, fmt.Sprintf("embeddings failed: %s", resp.Status), nil)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		vecs, err := decodeEmbeddings(payload, len(inputs))
		if err != nil {
			lastErr = err
			continue
		}
		c.learnDimension(len(vecs[0]))
		return vecs, nil
	}
	return nil, domain.OpError(domain.ErrIndexUnavailable, op, "embedding backend unreachable", lastErr)
}

func decodeEmbeddings(payload []byte, want int) ([][]float32, error) {
	var openaiOut struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil && len(openaiOut.Data) == want {
		out := make([][]float32, want)
		for i, d := range openaiOut.Data {
			idx := d.Index
			if idx < 0 || idx >= want || out[idx] != nil {
				idx = i
			}
			out[idx] = d.Embedding
		}
		if !hasMissing(out) {
			return out, nil
		}
	}
	// Ollama-native shapes: {"embedding": [...]} or {"embeddings": [[...]]}
	var ollamaOut struct {
		Embedding  []float32   `json:"embedding"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil {
		if len(ollamaOut.Embeddings) == want && !hasMissing(ollamaOut.Embeddings) {
			return ollamaOut.Embeddings, nil
		}
		if want == 1 && len(ollamaOut.Embedding) > 0 {
			return [][]float32{ollamaOut.Embedding}, nil
		}
	}
	return nil, errors.New("no embedding returned")
}

func hasMissing(v [][]float32) bool {
	for _, e := range v {
		if len(e) == 0 {
			return true
		}
	}
	return false
}

func (c *Client) learnDimension(n int) {
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = n
	}
	c.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
