// Package quiz generates multiple-choice quizzes from subject notes and coerces
// model output into validated questions.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
	"studyrag/internal/store"
	"studyrag/internal/textutil"
)

const (
	DefaultQuestions     = 5
	DefaultAttempts      = 3
	DefaultMaxInputRunes = 6000
)

type Config struct {
	Questions     int
	Attempts      int
	MaxInputRunes int
}

// Generator asks the backend for a quiz, normalizes it and appends it to the store.
type Generator struct {
	gen     domain.Generator
	quizzes store.QuizStore
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
}

func NewGenerator(gen domain.Generator, quizzes store.QuizStore, cfg Config, log *logger.Logger) *Generator {
	if cfg.Questions <= 0 {
		cfg.Questions = DefaultQuestions
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.MaxInputRunes <= 0 {
		cfg.MaxInputRunes = DefaultMaxInputRunes
	}
	return &Generator{
		gen:     gen,
		quizzes: quizzes,
		cfg:     cfg,
		log:     log.With("component", "QuizGenerator"),
		now:     time.Now,
	}
}

// BuildPrompt embeds the leading maxRunes of text in the quiz instruction.
func BuildPrompt(text string, questions, maxRunes int) string {
	return fmt.Sprintf("Generate exactly %d multiple-choice questions from the notes below.\n"+
		"Return ONLY a JSON array. Each element must be an object with the keys "+
		"\"question\" (string), \"options\" (array of exactly 4 strings) and "+
		"\"answer\" (the letter A, B, C or D of the correct option).\n"+
		"Do not add explanations, markdown or any text outside the array.\n\n"+
		"Notes:\n%s", questions, textutil.TruncateRunes(text, maxRunes))
}

// Generate produces and stores a quiz for subjectID. Nothing is stored when every attempt fails.
func (g *Generator) Generate(ctx context.Context, subjectID, text string) (domain.Quiz, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Quiz{}, domain.ErrEmptyInput
	}
	prompt := BuildPrompt(text, g.cfg.Questions, g.cfg.MaxInputRunes)

	var lastErr error
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Quiz{}, err
		}
		questions, err := g.attempt(ctx, prompt)
		if err == nil {
			quiz, err := g.quizzes.Append(ctx, domain.Quiz{
				SubjectID: subjectID,
				CreatedAt: g.now().UTC(),
				Questions: questions,
			})
			if err != nil {
				return domain.Quiz{}, fmt.Errorf("saving quiz: %w", err)
			}
			g.log.Info("quiz generated", "subject_id", subjectID, "questions", len(questions), "attempt", attempt)
			return quiz, nil
		}
		lastErr = err
		g.log.Warn("quiz attempt failed", "subject_id", subjectID, "attempt", attempt, "error", err)
		if !domain.Retryable(err) {
			break
		}
	}
	return domain.Quiz{}, fmt.Errorf("quiz generation failed: %w", lastErr)
}

func (g *Generator) attempt(ctx context.Context, prompt string) ([]domain.Question, error) {
	raw, err := g.gen.CompleteJSON(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.ClassifyGeneration("quiz_generate", err)
	}
	questions := Normalize(Parse(raw))
	if len(questions) == 0 {
		return nil, domain.OpError(domain.ErrValidation, "quiz_normalize", "no valid questions in output", nil)
	}
	if len(questions) > g.cfg.Questions {
		questions = questions[:g.cfg.Questions]
	}
	return questions, nil
}
