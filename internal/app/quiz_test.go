package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuiz(t *testing.T) {
	require.NoError(t, ValidateQuiz(DefaultQuiz()))

	tests := []struct {
		name string
		qs   []Question
	}{
		{"empty", nil},
		{"no text", []Question{{Question: " ", Options: []string{"a", "b"}, CorrectAnswer: "a"}}},
		{"one option", []Question{{Question: "q", Options: []string{"a"}, CorrectAnswer: "a"}}},
		{"no answer", []Question{{Question: "q", Options: []string{"a", "b"}}}},
		{"answer not an option", []Question{{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: "c"}}},
		{"answer twice", []Question{{Question: "q", Options: []string{"a", "a"}, CorrectAnswer: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateQuiz(tt.qs), ErrInvalidQuiz)
		})
	}
}

func TestLookupQuiz(t *testing.T) {
	assert.Equal(t, "def", LookupQuiz("python")[0].CorrectAnswer)
	assert.Equal(t, LookupQuiz("python"), LookupQuiz("  PYTHON "))
	assert.Equal(t, DefaultQuiz(), LookupQuiz("haskell"))
	assert.Equal(t, DefaultQuiz(), LookupQuiz(""))

	for key, qs := range quizBank {
		assert.NoError(t, ValidateQuiz(qs), key)
	}
}

func TestLookupQuizReturnsCopy(t *testing.T) {
	qs := LookupQuiz("python")
	qs[0].Options[0] = "mutated"
	assert.Equal(t, "def", LookupQuiz("python")[0].Options[0])

	d := DefaultQuiz()
	d[0].Question = "mutated"
	assert.NotEqual(t, "mutated", DefaultQuiz()[0].Question)
}

func TestQuizForBankByVideo(t *testing.T) {
	llm := &fakeLLM{responses: []string{validQuizJSON}}
	svc := newTestService(t, llm)

	q := svc.QuizFor(context.Background(), pythonVideoID, "", "")
	assert.Equal(t, QuizSourceBank, q.Source)
	assert.Equal(t, pythonVideoID, q.VideoID)
	assert.Equal(t, "Learn Python - Full Course for Beginners", q.Title)
	assert.Equal(t, LookupQuiz("python"), q.Questions)

	q = svc.QuizFor(context.Background(), goVideoID, "ignored title", "")
	assert.Equal(t, QuizSourceBank, q.Source)

	assert.Zero(t, llm.callCount())
}

func TestQuizForEmptyTextIsDefault(t *testing.T) {
	llm := &fakeLLM{responses: []string{validQuizJSON}}
	svc := newTestService(t, llm)

	q := svc.QuizFor(context.Background(), "", "  ", "")
	assert.Equal(t, QuizSourceDefault, q.Source)
	assert.Equal(t, DefaultQuiz(), q.Questions)
	assert.Zero(t, llm.callCount())
}

func TestQuizForGeneratesAndCaches(t *testing.T) {
	llm := &fakeLLM{responses: []string{"Sure! Here it is:\n```json\n" + validQuizJSON + "\n```"}}
	svc := newTestService(t, llm)
	ctx := context.Background()

	q := svc.QuizFor(ctx, "", "Rust Ownership", "Borrowing and lifetimes")
	require.Equal(t, QuizSourceLLM, q.Source)
	require.Len(t, q.Questions, 3)
	assert.Equal(t, "Data races", q.Questions[0].CorrectAnswer)
	assert.Equal(t, "Rust Ownership", q.Title)

	req := llm.lastCall()
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Contains(t, req.User, "Title: Rust Ownership")
	assert.NotNil(t, req.Schema)

	// same text with different spacing and case hits the in-memory cache
	q = svc.QuizFor(ctx, "", "rust   ownership", "borrowing and LIFETIMES")
	assert.Equal(t, QuizSourceCache, q.Source)
	assert.Equal(t, 1, llm.callCount())

	// a fresh service on the same database finds the stored quiz
	fresh, err := NewService(svc.cfg, svc.db, svc.catalog, llm, nil)
	require.NoError(t, err)
	q = fresh.QuizFor(ctx, "", "Rust Ownership", "Borrowing and lifetimes")
	assert.Equal(t, QuizSourceCache, q.Source)
	assert.Equal(t, 1, llm.callCount())
}

func TestQuizForFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{"llm error", &fakeLLM{err: errors.New("boom")}},
		{"not json", &fakeLLM{responses: []string{"I cannot do that"}}},
		{"invalid quiz", &fakeLLM{responses: []string{`[{"question":"q","options":["a","b"],"correct_answer":"z"}]`}}},
		{"empty array", &fakeLLM{responses: []string{`[]`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.llm)
			q := svc.QuizFor(context.Background(), "", "Kotlin Coroutines", "suspend functions")
			assert.Equal(t, QuizSourceDefault, q.Source)
			assert.Equal(t, "Kotlin Coroutines", q.Title)
			assert.Equal(t, DefaultQuiz(), q.Questions)
			assert.Equal(t, 1, tt.llm.callCount())
		})
	}
}

func TestQuizForWithoutLLM(t *testing.T) {
	svc := newTestService(t, nil)
	q := svc.QuizFor(context.Background(), "", "Kotlin Coroutines", "")
	assert.Equal(t, QuizSourceDefault, q.Source)
	assert.Len(t, q.Questions, 3)
}

func TestQuizForUnknownVideoUsesGivenText(t *testing.T) {
	llm := &fakeLLM{responses: []string{validQuizJSON}}
	svc := newTestService(t, llm)

	q := svc.QuizFor(context.Background(), "zzzzzzzzzzz", "Rust Ownership", "")
	assert.Equal(t, QuizSourceLLM, q.Source)
	assert.Equal(t, "zzzzzzzzzzz", q.VideoID)
}

func TestQuizCacheKey(t *testing.T) {
	assert.Equal(t, quizCacheKey("A  b", "C"), quizCacheKey("a b", " c "))
	// the separator keeps title/description boundaries apart
	assert.NotEqual(t, quizCacheKey("ab", "c"), quizCacheKey("a", "bc"))
}
