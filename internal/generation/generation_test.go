package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The question count comes from the user turn, so the system turn must not fix one.
func TestStrictJSONSystemPrompt_NoQuestionCount(t *testing.T) {
	assert.NotRegexp(t, `[0-9]`, StrictJSONSystemPrompt)
	assert.Contains(t, StrictJSONSystemPrompt, "JSON array")
}
