package app

import (
	"testing"

	"quiz-lobby-service/internal/domain"
)

func TestEvaluateTextQuestion(t *testing.T) {
	question := domain.Question{Type: domain.QuestionText, CorrectAnswer: " Mars "}

	if !Evaluate(question, "mars") {
		t.Fatal("case-insensitive match should be correct")
	}
	if !Evaluate(question, "  MARS  ") {
		t.Fatal("trimmed match should be correct")
	}
	if Evaluate(question, "venus") {
		t.Fatal("wrong answer judged correct")
	}
	if Evaluate(domain.Question{Type: domain.QuestionText}, "") {
		t.Fatal("empty stored answer must never be correct")
	}
}

func TestEvaluateChoiceQuestion(t *testing.T) {
	question := domain.Question{
		Type: domain.QuestionChoice,
		Options: []domain.Option{
			{Text: "Oslo"},
			{Text: "Bergen", Correct: true},
		},
	}

	if !Evaluate(question, " bergen ") {
		t.Fatal("normalized option match should be correct")
	}
	if Evaluate(question, "Oslo") {
		t.Fatal("non-correct option judged correct")
	}
	if Evaluate(question, "Trondheim") {
		t.Fatal("unmatched submission judged correct")
	}
	// Malformed data evaluates to incorrect, never errors.
	if Evaluate(domain.Question{Type: domain.QuestionChoice}, "anything") {
		t.Fatal("choice question without options judged correct")
	}
	if Evaluate(domain.Question{Type: "bogus"}, "anything") {
		t.Fatal("unknown question type judged correct")
	}
}
