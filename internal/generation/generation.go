// Package generation holds the text-generation backends used for answers and quizzes.
package generation

// StrictJSONSystemPrompt is the system turn sent with every JSON completion.
const StrictJSONSystemPrompt = "You output STRICT JSON. No explanations. No markdown. No text before/after. " +
	"Only a JSON array of MCQ questions like: " +
	`[{"question":"...","options":["A","B","C","D"],"answer":"A"}]`
