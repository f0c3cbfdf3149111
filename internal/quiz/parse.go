package quiz

import (
	"encoding/json"
	"regexp"
	"strings"

	"studyrag/internal/domain"
)

// RawQuestion is a question as produced by the model, before normalization.
// Options and Answer keep whatever JSON shape the model emitted.
type RawQuestion struct {
	Text    string
	Options []any
	Answer  any
}

var (
	numberedLine = regexp.MustCompile(`^\s*\d+\.\s*(.*)$`)
	optionLine   = regexp.MustCompile(`^\s*([A-D])\s*[).:\-]\s*(.*)$`)
)

// Parse tries the strict JSON path first and falls back to the line heuristic on any failure.
func Parse(raw string) []RawQuestion {
	if qs, err := ParseStrict(raw); err == nil {
		return qs
	}
	return ParseHeuristic(raw)
}

// ParseStrict decodes the text between the first '[' and the last ']' as a JSON list.
// It returns domain.ErrJSONParse when that fails and domain.ErrValidation for an empty list.
func ParseStrict(raw string) ([]RawQuestion, error) {
	const op = "quiz_parse"
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < 0 || end < start {
		return nil, domain.OpError(domain.ErrJSONParse, op, "no JSON array in output", nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, domain.OpError(domain.ErrJSONParse, op, "invalid JSON array", err)
	}
	if len(items) == 0 {
		return nil, domain.OpError(domain.ErrValidation, op, "empty question list", nil)
	}
	out := make([]RawQuestion, 0, len(items))
	for _, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			// non-object entries are kept empty and dropped by Normalize
			out = append(out, RawQuestion{})
			continue
		}
		out = append(out, RawQuestion{
			Text:    stringify(obj["question"]),
			Options: optionList(obj["options"]),
			Answer:  obj["answer"],
		})
	}
	return out, nil
}

// ParseHeuristic recovers questions from numbered plain-text output such as
//
//	1. What is 2+2?
//	A) 3
//	B) 4
//
// Every recovered question answers "A", its first option.
func ParseHeuristic(raw string) []RawQuestion {
	var (
		out     []RawQuestion
		current *RawQuestion
	)
	finalize := func() {
		if current != nil && current.Text != "" && len(current.Options) > 0 {
			current.Answer = "A"
			out = append(out, *current)
		}
		current = nil
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			finalize()
			current = &RawQuestion{Text: strings.TrimSpace(m[1])}
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil && current != nil {
			current.Options = append(current.Options, strings.TrimSpace(m[2]))
		}
	}
	finalize()
	return out
}

// optionList accepts the options value in any shape. Objects keyed by letter keep key order A..D.
func optionList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		var out []any
		for _, k := range []string{"A", "B", "C", "D", "a", "b", "c", "d"} {
			if o, ok := t[k]; ok {
				out = append(out, o)
			}
		}
		if len(out) == 0 {
			return []any{t}
		}
		return out
	default:
		return []any{t}
	}
}
