// Package gemini implements generation with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"studyrag/internal/domain"
	"studyrag/internal/generation"
)

var _ domain.Generator = (*Client)(nil)

const DefaultModel = "gemini-2.0-flash"

// Config configures the Gemini generator.
type Config struct {
	APIKey      string
	Model       string
	ChatTimeout time.Duration
	JSONTimeout time.Duration
}

// Client implements domain.Generator on top of genai.
type Client struct {
	client      *genai.Client
	model       string
	chatTimeout time.Duration
	jsonTimeout time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for generation")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 25 * time.Second
	}
	if cfg.JSONTimeout <= 0 {
		cfg.JSONTimeout = 30 * time.Second
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, domain.OpError(domain.ErrGenerationProvider, "gemini_init", "create client failed", err)
	}
	return &Client{
		client:      client,
		model:       cfg.Model,
		chatTimeout: cfg.ChatTimeout,
		jsonTimeout: cfg.JSONTimeout,
	}, nil
}

// CompleteChat folds system turns into the system instruction and replays the rest as history.
func (c *Client) CompleteChat(ctx context.Context, messages []domain.Message) (string, error) {
	const op = "gemini_chat"
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	system, history, last := splitMessages(messages)
	if last == "" {
		return "", domain.OpError(domain.ErrGenerationProvider, op, "no user turn to send", nil)
	}
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(500)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", domain.ClassifyGeneration(op, err)
	}
	return responseText(resp), nil
}

// CompleteJSON asks for an application/json response under the strict-JSON instruction.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jsonTimeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(1200)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(generation.StrictJSONSystemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", domain.ClassifyGeneration("gemini_json", err)
	}
	return responseText(resp), nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// splitMessages returns the joined system text, prior turns as genai history,
// and the final user turn.
func splitMessages(messages []domain.Message) (string, []*genai.Content, string) {
	var system []string
	var turns []domain.Message
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != domain.RoleUser {
		return strings.Join(system, "\n\n"), toHistory(turns), ""
	}
	last := turns[len(turns)-1].Content
	return strings.Join(system, "\n\n"), toHistory(turns[:len(turns)-1]), last
}

func toHistory(turns []domain.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String()
}
