package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func TestParseStrict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantN   int
	}{
		{"plain array", `[{"question":"2+2?","options":["3","4","5","6"],"answer":"B"}]`, nil, 1},
		{"prose around array", "Here you go:\n```json\n[{\"question\":\"q\",\"options\":[\"a\",\"b\"],\"answer\":\"A\"}]\n```", nil, 1},
		{"no brackets", "Sorry, I can't help", domain.ErrJSONParse, 0},
		{"broken json", `[{"question": "q", }]`, domain.ErrJSONParse, 0},
		{"empty list", `[]`, domain.ErrValidation, 0},
		{"closing before opening", `] nothing [`, domain.ErrJSONParse, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrict(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantN)
		})
	}
}

func TestParseHeuristic_Example(t *testing.T) {
	got := ParseHeuristic("1. What is 2+2?\nA) 3\nB) 4\nC) 5\nD) 6\n")
	require.Len(t, got, 1)
	assert.Equal(t, "What is 2+2?", got[0].Text)
	assert.Equal(t, []any{"3", "4", "5", "6"}, got[0].Options)
	assert.Equal(t, "A", got[0].Answer)

	questions := Normalize(got)
	require.Len(t, questions, 1)
	assert.Equal(t, "3", questions[0].Answer)
}

func TestParseHeuristic_LetterLikeOptionsKeepFirstAnswer(t *testing.T) {
	questions := Normalize(Parse("1. Letter after A?\nA) B\nB) C\nC) D\nD) E\n"))
	require.Len(t, questions, 1)
	assert.Equal(t, []string{"B", "C", "D", "E"}, questions[0].Options)
	assert.Equal(t, "B", questions[0].Answer)
}

func TestParseHeuristic_MultipleAndNoise(t *testing.T) {
	raw := "Quiz time!\n" +
		"1. Capital of France?\n" +
		"A. Paris\n" +
		"B: Rome\n" +
		"random commentary\n" +
		"2. Largest planet?\r\n" +
		"A - Jupiter\r\n" +
		"3. Dangling question with no options\n"
	got := ParseHeuristic(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "Capital of France?", got[0].Text)
	assert.Equal(t, []any{"Paris", "Rome"}, got[0].Options)
	assert.Equal(t, "Largest planet?", got[1].Text)
	assert.Equal(t, []any{"Jupiter"}, got[1].Options)
}

func TestParseHeuristic_OptionsBeforeAnyQuestionIgnored(t *testing.T) {
	assert.Empty(t, ParseHeuristic("A) orphan\nB) orphan"))
}

func TestParse_FallsBackToHeuristic(t *testing.T) {
	got := Parse("1. What is H2O?\nA) Water\nB) Salt\n")
	require.Len(t, got, 1)
	assert.Equal(t, "What is H2O?", got[0].Text)

	assert.Empty(t, Parse("Sorry, I can't help"))
}
