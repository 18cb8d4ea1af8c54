package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		in, cmd, arg string
	}{
		{"/help", "/help", ""},
		{"  /QUIZ   python  ", "/quiz", "python"},
		{"/search　machine   learning", "/search", "machine learning"},
		{"hello /help", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		cmd, arg := normalizeCommand(tt.in)
		assert.Equal(t, tt.cmd, cmd, tt.in)
		assert.Equal(t, tt.arg, arg, tt.in)
	}
}

func TestHandleCommand(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	run := func(input string) string {
		t.Helper()
		handled, out, err := HandleCommand(ctx, svc, input)
		require.NoError(t, err)
		require.True(t, handled)
		return out
	}

	handled, _, err := HandleCommand(ctx, svc, "what is a tuple?")
	require.NoError(t, err)
	assert.False(t, handled)

	assert.Contains(t, run("/help"), "/quiz <video|topic>")
	assert.Equal(t, "unknown command: /nope", run("/nope"))

	for _, cmd := range []string{"/video", "/search", "/quiz", "/qa", "/ask"} {
		assert.Contains(t, run(cmd), "usage: "+cmd, cmd)
	}

	videos := run("/videos")
	assert.Contains(t, videos, "[python] Learn Python - Full Course for Beginners")
	assert.Contains(t, videos, "default: https://www.youtube.com/watch?v=rfscVS0vtbw")

	assert.Equal(t, "https://www.youtube.com/watch?v=rfscVS0vtbw", run("/video Python"))
	assert.Equal(t, "https://www.youtube.com/watch?v=rfscVS0vtbw", run("/video underwater basket weaving"))

	assert.Contains(t, run("/search sql"), "https://www.youtube.com/watch?v="+sqlVideoID)
	assert.Equal(t, "no courses found", run("/search zzzzqqq"))

	quiz := run("/quiz python")
	assert.Contains(t, quiz, "1. Which keyword defines a function in Python?")
	assert.Contains(t, quiz, "   a) def")
	assert.Contains(t, run("/quiz some other thing"), "What is the main purpose of Python?")

	qa := run("/qa python")
	assert.Contains(t, qa, "1. ")
	assert.Contains(t, qa, "concepts: ")

	assert.Equal(t, "no attempts yet", run("/stats"))

	_, _, err = HandleCommand(ctx, svc, "/ask what is a list?")
	assert.ErrorIs(t, err, ErrNoLLM)
}

func TestHandleCommandStatsAfterAttempt(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	quiz := svc.QuizForKey(ctx, "python")
	_, err := svc.GradeAttempt(ctx, quiz, map[int]string{0: "def", 1: "3"})
	require.NoError(t, err)

	_, out, err := HandleCommand(ctx, svc, "/stats python")
	require.NoError(t, err)
	assert.Contains(t, out, "attempts: 1")
	assert.Contains(t, out, "best: 67%")
	assert.Contains(t, out, "last: 2026-03-14")
}

func TestHandleCommandAskWithLLM(t *testing.T) {
	llm := &fakeLLM{responses: []string{"A list is an ordered, mutable collection."}}
	svc := newTestService(t, llm)

	_, out, err := HandleCommand(context.Background(), svc, "/ask what is a list?")
	require.NoError(t, err)
	assert.Equal(t, "A list is an ordered, mutable collection.", out)
}

func TestQuizForKey(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	q := svc.QuizForKey(ctx, "python")
	assert.Equal(t, QuizSourceBank, q.Source)
	assert.Equal(t, pythonVideoID, q.VideoID)

	q = svc.QuizForKey(ctx, "python data structures")
	assert.Equal(t, QuizSourceBank, q.Source)

	q = svc.QuizForKey(ctx, "cobol")
	assert.Equal(t, QuizSourceDefault, q.Source)
	assert.Equal(t, "cobol", q.Title)
	assert.Equal(t, DefaultQuiz(), q.Questions)
}
