package app

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader feeds fixed lines, then io.EOF.
type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	if line == "^C" {
		return "", readline.ErrInterrupt
	}
	return line, nil
}

func (r *scriptedReader) SetPrompt(p string) { r.prompts = append(r.prompts, p) }

func (r *scriptedReader) Close() error { return nil }

func runTerminal(t *testing.T, svc *Service, lines ...string) (string, *scriptedReader) {
	t.Helper()
	in := &scriptedReader{lines: lines}
	var out bytes.Buffer
	term := NewTerminal(svc, in, &out)
	term.charWait = 0
	require.NoError(t, term.Loop(context.Background()))
	return out.String(), in
}

func TestTerminalCommandsAndExit(t *testing.T) {
	svc := newTestService(t, nil)

	out, _ := runTerminal(t, svc, "", "^C", "/help", "/video sql", "exit", "/videos")
	assert.Contains(t, out, "📺 Learnbot")
	assert.Contains(t, out, "no LLM key set")
	assert.Contains(t, out, "/search <query>")
	assert.Contains(t, out, "https://www.youtube.com/watch?v="+sqlVideoID)
	assert.NotContains(t, out, "default: ")
	assert.NotContains(t, out, "bye")
	assert.Equal(t, 2, strings.Count(out, "\n------------------\n"))
	assert.NotContains(t, out, "------------------\n\n")
}

func TestTerminalEOFAndDirtyInput(t *testing.T) {
	svc := newTestService(t, nil)

	out, _ := runTerminal(t, svc, "bad \xff input")
	assert.Contains(t, out, "invalid input ignored")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "bye"))
}

func TestTerminalTutorWithoutLLM(t *testing.T) {
	svc := newTestService(t, nil)

	out, _ := runTerminal(t, svc, "what is a tuple?")
	assert.Contains(t, out, "Tutor>")
	assert.Contains(t, out, "the tutor needs an LLM key")
}

func TestTerminalTutorStreams(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"A tuple ", "is immutable. ", "```py\nt = (1, 2)\n```"}}
	svc := newTestService(t, llm)

	out, _ := runTerminal(t, svc, "what is a tuple?")
	assert.Contains(t, out, "A tuple is immutable. ```py\nt = (1, 2)\n```")
	assert.Equal(t, 1, llm.callCount())
}

func TestTerminalTakeQuiz(t *testing.T) {
	svc := newTestService(t, nil)

	out, in := runTerminal(t, svc, "/quiz python", "def", "2", "TUPLE")
	assert.Contains(t, out, "1. Which keyword defines a function in Python?")
	assert.Contains(t, out, "   1) def")
	assert.Contains(t, out, "Score: 3/3 (100%)")
	assert.Contains(t, in.prompts, "Answer> ")

	st, err := svc.Stats(context.Background(), pythonVideoID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Attempts)
	assert.Equal(t, 100.0, st.Best)
}

func TestTerminalTakeQuizSkipsAndAborts(t *testing.T) {
	svc := newTestService(t, nil)

	out, _ := runTerminal(t, svc, "/quiz python", "", "9")
	assert.Contains(t, out, "quiz aborted")
	assert.NotContains(t, out, "Score:")

	st, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Attempts)
}

func TestMatchOption(t *testing.T) {
	opts := []string{"def", "func", "function", "lambda only"}

	got, ok := matchOption(opts, "2")
	assert.True(t, ok)
	assert.Equal(t, "func", got)

	got, ok = matchOption(opts, "  Lambda Only ")
	assert.True(t, ok)
	assert.Equal(t, "lambda only", got)

	_, ok = matchOption(opts, "5")
	assert.False(t, ok)
	_, ok = matchOption(opts, "0")
	assert.False(t, ok)
	_, ok = matchOption(opts, "")
	assert.False(t, ok)
	_, ok = matchOption(opts, "method")
	assert.False(t, ok)
}

func TestTypewriteTracksCodeFences(t *testing.T) {
	var out bytes.Buffer
	term := &Terminal{out: &out}
	st := &typewriterState{}

	term.typewrite("x ``", st)
	term.typewrite("`go", st)
	assert.True(t, st.inCodeBlock)
	term.typewrite("\n```", st)
	assert.False(t, st.inCodeBlock)
	assert.Equal(t, "x ```go\n```", out.String())
}
