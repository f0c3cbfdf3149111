// Package answer asks the generation backend to answer a question from retrieved notes.
package answer

import (
	"context"
	"strings"
	"time"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
	"studyrag/internal/textutil"
)

const (
	// FallbackAnswer is the phrase the model is told to use when the notes do not cover the question.
	FallbackAnswer = "I don't know based on the given notes."
	// EmptyAnswerMessage replaces an empty model response.
	EmptyAnswerMessage = "AI could not generate an answer."
	// UnavailableMessage replaces any backend failure.
	UnavailableMessage = "AI temporarily unavailable."

	DefaultTimeout         = 25 * time.Second
	DefaultMaxContextRunes = 6000
)

const systemPrompt = "You are a helpful and concise AI tutor. Answer the question using only the " +
	"information in the provided context. If the context does not contain enough information to " +
	"answer, reply exactly with: \"" + FallbackAnswer + "\""

type Config struct {
	Timeout         time.Duration
	MaxContextRunes int
}

// Generator turns context and a question into a user-facing answer. It never returns an error.
type Generator struct {
	gen domain.Generator
	cfg Config
	log *logger.Logger
}

func NewGenerator(gen domain.Generator, cfg Config, log *logger.Logger) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxContextRunes <= 0 {
		cfg.MaxContextRunes = DefaultMaxContextRunes
	}
	return &Generator{gen: gen, cfg: cfg, log: log.With("component", "AnswerGenerator")}
}

// Messages builds the system and user turns sent to the backend.
func Messages(contextText, question string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: "Context:\n" + contextText + "\n\nQuestion:\n" + question +
			"\n\nAnswer clearly and in simple words:"},
	}
}

// Answer degrades to EmptyAnswerMessage or UnavailableMessage instead of failing.
func (g *Generator) Answer(ctx context.Context, contextText, question string) string {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	out, err := g.gen.CompleteChat(ctx, Messages(textutil.TruncateRunes(contextText, g.cfg.MaxContextRunes), question))
	if err != nil {
		g.log.Warn("answer generation failed", "error", domain.ClassifyGeneration("answer", err))
		return UnavailableMessage
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return EmptyAnswerMessage
	}
	return out
}
