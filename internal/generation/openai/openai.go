// Package openai talks to OpenAI-compatible /chat/completions endpoints.
// OpenRouter is the default provider.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studyrag/internal/domain"
	"studyrag/internal/generation"
)

var _ domain.Generator = (*Client)(nil)

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultChatModel   = "deepseek/deepseek-r1:free"
	DefaultJSONModel   = "deepseek/deepseek-chat"
	DefaultChatTimeout = 25 * time.Second
	DefaultJSONTimeout = 30 * time.Second
	DefaultTitle       = "StudyBuddy AI"
	DefaultReferer     = "http://localhost"
)

// Config configures the chat client. Zero values fall back to the defaults above.
type Config struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	JSONModel       string
	ChatTimeout     time.Duration
	JSONTimeout     time.Duration
	ChatMaxTokens   int
	ChatTemperature float64
	JSONMaxTokens   int
	JSONTemperature float64
	Referer         string
	Title           string
	HTTPClient      *http.Client
}

// Client implements domain.Generator over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIKey == "" && !isLocal(cfg.BaseURL) {
		return nil, fmt.Errorf("generation: API key is required for %s", cfg.BaseURL)
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.JSONModel == "" {
		cfg.JSONModel = DefaultJSONModel
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}
	if cfg.JSONTimeout <= 0 {
		cfg.JSONTimeout = DefaultJSONTimeout
	}
	if cfg.ChatMaxTokens <= 0 {
		cfg.ChatMaxTokens = 500
	}
	if cfg.ChatTemperature <= 0 {
		cfg.ChatTemperature = 0.2
	}
	if cfg.JSONMaxTokens <= 0 {
		cfg.JSONMaxTokens = 1200
	}
	if cfg.JSONTemperature <= 0 {
		cfg.JSONTemperature = 0.1
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, client: httpClient}, nil
}

func isLocal(baseURL string) bool {
	return strings.Contains(baseURL, "localhost") || strings.Contains(baseURL, "127.0.0.1")
}

// CompleteChat sends messages to the chat model and returns the first choice.
func (c *Client) CompleteChat(ctx context.Context, messages []domain.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ChatTimeout)
	defer cancel()

	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	return c.complete(ctx, "chat", chatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    msgs,
		MaxTokens:   c.cfg.ChatMaxTokens,
		Temperature: c.cfg.ChatTemperature,
	})
}

// CompleteJSON sends prompt under the strict-JSON system turn to the JSON model.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.JSONTimeout)
	defer cancel()

	return c.complete(ctx, "json", chatRequest{
		Model: c.cfg.JSONModel,
		Messages: []chatMessage{
			{Role: string(domain.RoleSystem), Content: generation.StrictJSONSystemPrompt},
			{Role: string(domain.RoleUser), Content: prompt},
		},
		MaxTokens:   c.cfg.JSONMaxTokens,
		Temperature: c.cfg.JSONTemperature,
	})
}

func (c *Client) complete(ctx context.Context, op string, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", domain.OpError(domain.ErrGenerationProvider, op, "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", domain.OpError(domain.ErrGenerationProvider, op, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("HTTP-Referer", c.cfg.Referer)
	req.Header.Set("X-Title", c.cfg.Title)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.ClassifyGeneration(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.ClassifyGeneration(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.OpError(domain.ErrGenerationProvider, op,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)), nil)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", domain.OpError(domain.ErrGenerationProvider, op, "decode response", err)
	}
	if out.Error != nil {
		return "", domain.OpError(domain.ErrGenerationProvider, op, out.Error.Message, nil)
	}
	if len(out.Choices) == 0 {
		return "", domain.OpError(domain.ErrGenerationProvider, op, "no choices returned", nil)
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
