package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
	"studyrag/internal/store"
	"studyrag/internal/store/memory"
)

const goodOutput = `[{"question":"2+2?","options":["3","4","5","6"],"answer":"B"}]`

type scriptedGenerator struct {
	outputs []string
	errs    []error
	prompts []string
}

func (s *scriptedGenerator) CompleteChat(context.Context, []domain.Message) (string, error) {
	return "", errors.New("not used")
}

func (s *scriptedGenerator) CompleteJSON(_ context.Context, prompt string) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var out string
	var err error
	if i < len(s.outputs) {
		out = s.outputs[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return out, err
}

func newTestGenerator(gen domain.Generator) (*Generator, *memory.Quizzes) {
	quizzes := memory.NewQuizzes()
	return NewGenerator(gen, quizzes, Config{}, logger.Nop()), quizzes
}

func TestGenerate_FirstAttemptSucceeds(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{goodOutput}}
	g, quizzes := newTestGenerator(gen)

	quiz, err := g.Generate(context.Background(), "math", "Addition notes.")
	require.NoError(t, err)
	assert.Len(t, gen.prompts, 1)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, "4", quiz.Questions[0].Answer)

	cur, err := quizzes.Current(context.Background(), "math")
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, cur.ID)
}

func TestGenerate_RetriesUntilValid(t *testing.T) {
	gen := &scriptedGenerator{
		outputs: []string{"Sorry, I can't help", "", goodOutput},
		errs:    []error{nil, domain.OpError(domain.ErrGenerationProvider, "json", "502", nil), nil},
	}
	g, _ := newTestGenerator(gen)

	quiz, err := g.Generate(context.Background(), "math", "notes")
	require.NoError(t, err)
	assert.Len(t, gen.prompts, 3)
	assert.Len(t, quiz.Questions, 1)
}

func TestGenerate_TimeoutIsRetried(t *testing.T) {
	gen := &scriptedGenerator{
		outputs: []string{"", goodOutput},
		errs:    []error{context.DeadlineExceeded, nil},
	}
	g, _ := newTestGenerator(gen)

	_, err := g.Generate(context.Background(), "math", "notes")
	require.NoError(t, err)
	assert.Len(t, gen.prompts, 2)
}

func TestGenerate_FailureWritesNothing(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"Sorry, I can't help", "[]", `[{"question":"","options":[]}]`}}
	g, quizzes := newTestGenerator(gen)

	_, err := g.Generate(context.Background(), "math", "notes")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, gen.prompts, DefaultAttempts)

	_, err = quizzes.Current(context.Background(), "math")
	assert.ErrorIs(t, err, store.ErrQuizNotFound)
}

func TestGenerate_CancellationStops(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{context.Canceled}}
	g, _ := newTestGenerator(gen)

	_, err := g.Generate(context.Background(), "math", "notes")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, gen.prompts, 1)
}

func TestGenerate_EmptyText(t *testing.T) {
	gen := &scriptedGenerator{}
	g, _ := newTestGenerator(gen)

	_, err := g.Generate(context.Background(), "math", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Empty(t, gen.prompts)
}

func TestGenerate_AppendsRatherThanReplaces(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{goodOutput, goodOutput}}
	g, quizzes := newTestGenerator(gen)
	ctx := context.Background()

	first, err := g.Generate(ctx, "math", "notes")
	require.NoError(t, err)
	second, err := g.Generate(ctx, "math", "notes")
	require.NoError(t, err)

	all, err := quizzes.List(ctx, "math")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	cur, err := quizzes.Current(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.ID)
}

func TestGenerate_CapsQuestionCount(t *testing.T) {
	many := "[" + strings.TrimSuffix(strings.Repeat(`{"question":"q","options":["a","b"],"answer":"A"},`, 8), ",") + "]"
	gen := &scriptedGenerator{outputs: []string{many}}
	g, _ := newTestGenerator(gen)

	quiz, err := g.Generate(context.Background(), "math", "notes")
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, DefaultQuestions)
}

func TestBuildPrompt_TruncatesNotes(t *testing.T) {
	notes := strings.Repeat("é", 10) + "TAIL"
	prompt := BuildPrompt(notes, 5, 10)
	assert.Contains(t, prompt, strings.Repeat("é", 10))
	assert.NotContains(t, prompt, "TAIL")
	assert.Contains(t, prompt, "exactly 5")
}
