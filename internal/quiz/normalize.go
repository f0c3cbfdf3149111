package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"studyrag/internal/domain"
)

// Placeholder pads questions that have fewer than four usable options.
const Placeholder = "N/A"

const optionCount = 4

// Normalize coerces raw questions into the fixed schema and drops the ones that cannot be saved.
// An empty result means the attempt failed.
func Normalize(raw []RawQuestion) []domain.Question {
	out := make([]domain.Question, 0, len(raw))
	for _, rq := range raw {
		if q, ok := normalizeOne(rq); ok {
			out = append(out, q)
		}
	}
	return out
}

func normalizeOne(rq RawQuestion) (domain.Question, bool) {
	text := strings.TrimSpace(rq.Text)
	if text == "" {
		return domain.Question{}, false
	}

	usable := make([]string, 0, optionCount)
	for _, o := range rq.Options {
		s := strings.TrimSpace(CoerceOption(o))
		if s == "" {
			continue
		}
		usable = append(usable, s)
		if len(usable) == optionCount {
			break
		}
	}
	if len(usable) < 2 {
		return domain.Question{}, false
	}

	answer, ok := resolveAnswer(rq.Answer, usable)
	if !ok {
		return domain.Question{}, false
	}

	options := make([]string, optionCount)
	for i := range options {
		options[i] = Placeholder
		if i < len(usable) {
			options[i] = usable[i]
		}
	}
	return domain.Question{Text: text, Options: options, Answer: answer}, true
}

// resolveAnswer maps a letter A-D to its option and otherwise requires the answer
// to match an option case-insensitively, returning that option verbatim.
func resolveAnswer(raw any, usable []string) (string, bool) {
	answer := strings.TrimSpace(stringify(raw))
	if answer == "" {
		return usable[0], true
	}
	if len(answer) == 1 {
		if idx := strings.IndexByte("ABCD", upper(answer[0])); idx >= 0 {
			if idx < len(usable) {
				return usable[idx], true
			}
			return usable[0], true
		}
	}
	for _, o := range usable {
		if strings.EqualFold(o, answer) {
			return o, true
		}
	}
	return "", false
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// CoerceOption turns one raw option into display text: lists yield their first element,
// objects their "text" or "option" field, anything else its string form.
func CoerceOption(v any) string {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return ""
		}
		return stringify(t[0])
	case map[string]any:
		for _, key := range []string{"text", "option"} {
			if f, ok := t[key]; ok {
				return stringify(f)
			}
		}
		return stringify(t)
	default:
		return stringify(t)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
