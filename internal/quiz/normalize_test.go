package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_LetterAnswerExample(t *testing.T) {
	raw, err := ParseStrict(`[{"question":"2+2?","options":["3","4","5","6"],"answer":"B"}]`)
	require.NoError(t, err)
	got := Normalize(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "4", got[0].Answer)
	assert.Equal(t, []string{"3", "4", "5", "6"}, got[0].Options)
}

func TestNormalize_AlwaysFourOptions(t *testing.T) {
	raw, err := ParseStrict(`[
		{"question":"scalars","options":[1, true, "x"],"answer":"A"},
		{"question":"nested","options":[["first","ignored"],["second"]],"answer":"B"},
		{"question":"objects","options":[{"text":"t1"},{"option":"o2"},{"label":"l3"}],"answer":"C"},
		{"question":"too many","options":["a","b","c","d","e","f"],"answer":"a"},
		{"question":"lettered map","options":{"A":"alpha","B":"beta","C":"gamma"},"answer":"B"}
	]`)
	require.NoError(t, err)
	got := Normalize(raw)
	require.Len(t, got, 5)
	for _, q := range got {
		assert.Len(t, q.Options, 4, q.Text)
	}

	assert.Equal(t, []string{"1", "true", "x", Placeholder}, got[0].Options)
	assert.Equal(t, "1", got[0].Answer)
	assert.Equal(t, []string{"first", "second", Placeholder, Placeholder}, got[1].Options)
	assert.Equal(t, "second", got[1].Answer)
	assert.Equal(t, []string{"t1", "o2", `{"label":"l3"}`, Placeholder}, got[2].Options)
	assert.Equal(t, `{"label":"l3"}`, got[2].Answer)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got[3].Options)
	assert.Equal(t, "a", got[3].Answer)
	assert.Equal(t, []string{"alpha", "beta", "gamma", Placeholder}, got[4].Options)
	assert.Equal(t, "beta", got[4].Answer)
}

func TestNormalize_AnswerRules(t *testing.T) {
	tests := []struct {
		name    string
		options []any
		answer  any
		want    string
		dropped bool
	}{
		{"letter in range", []any{"x", "y", "z", "w"}, "D", "w", false},
		{"lowercase letter", []any{"x", "y"}, "b", "y", false},
		{"letter out of range", []any{"x", "y"}, "D", "x", false},
		{"text answer trimmed", []any{"Paris", "Rome"}, "  Rome ", "Rome", false},
		{"case-insensitive match returns option text", []any{"Paris", "Rome"}, "paris", "Paris", false},
		{"empty answer defaults to first", []any{"Paris", "Rome"}, "", "Paris", false},
		{"missing answer defaults to first", []any{"Paris", "Rome"}, nil, "Paris", false},
		{"numeric answer", []any{3.0, 4.0}, 4.0, "4", false},
		{"answer not among options", []any{"Paris", "Rome"}, "Berlin", "", true},
		{"placeholder is not an answer", []any{"Paris", "Rome"}, "N/A", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]RawQuestion{{Text: "q", Options: tt.options, Answer: tt.answer}})
			if tt.dropped {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Answer)
		})
	}
}

func TestNormalize_DropsUnusableQuestions(t *testing.T) {
	got := Normalize([]RawQuestion{
		{Text: "", Options: []any{"a", "b"}},
		{Text: "   ", Options: []any{"a", "b"}},
		{Text: "one option", Options: []any{"a", " ", ""}},
		{Text: "ok", Options: []any{" a ", "", "b"}},
		{},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Text)
	assert.Equal(t, []string{"a", "b", Placeholder, Placeholder}, got[0].Options)
}

func TestCoerceOption(t *testing.T) {
	assert.Equal(t, "", CoerceOption([]any{}))
	assert.Equal(t, "2", CoerceOption([]any{2.0}))
	assert.Equal(t, "x", CoerceOption(map[string]any{"text": "x", "option": "y"}))
	assert.Equal(t, "", CoerceOption(nil))
	assert.Equal(t, "2.5", CoerceOption(2.5))
}
