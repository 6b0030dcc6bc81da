package app

import (
	"strings"

	"quiz-lobby-service/internal/domain"
)

// Evaluate judges a raw submission against a question. It is a pure function:
// malformed question data (empty stored answer, missing options) evaluates to
// incorrect rather than erroring. Index validation is the caller's concern.
func Evaluate(question domain.Question, submitted string) bool {
	answer := normalizeAnswer(submitted)

	switch question.Type {
	case domain.QuestionText:
		stored := normalizeAnswer(question.CorrectAnswer)
		return stored != "" && stored == answer
	case domain.QuestionChoice:
		for _, opt := range question.Options {
			if opt.Correct && normalizeAnswer(opt.Text) == answer {
				return true
			}
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
