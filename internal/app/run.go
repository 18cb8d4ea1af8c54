package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chzyer/readline"
	"github.com/rivo/uniseg"
)

// ErrDirtyInput marks a line with invalid UTF-8 (usually a broken IME
// sequence). The line is dropped, the loop keeps going.
var ErrDirtyInput = errors.New("dirty input")

const separator = "\n------------------"

// lineReader is the part of *readline.Instance the REPL uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Terminal is the interactive front end.
type Terminal struct {
	svc      *Service
	in       lineReader
	out      io.Writer
	charWait time.Duration
}

func NewTerminal(svc *Service, in lineReader, out io.Writer) *Terminal {
	return &Terminal{svc: svc, in: in, out: out, charWait: 4 * time.Millisecond}
}

// Run opens a readline session on the terminal and loops until exit.
func Run(ctx context.Context, cfg Config, svc *Service) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You> ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	return NewTerminal(svc, rl, rl.Stdout()).Loop(ctx)
}

func (t *Terminal) Loop(ctx context.Context) error {
	fmt.Fprintln(t.out, "📺 Learnbot")
	fmt.Fprintln(t.out, "Type exit to quit, /help for commands")
	if !t.svc.HasLLM() {
		fmt.Fprintln(t.out, "(no LLM key set: quizzes come from the built-in bank, the tutor is off)")
	}
	fmt.Fprintln(t.out)

	for {
		if ctx.Err() != nil {
			return nil
		}
		t.in.SetPrompt("You> ")
		line, err := t.readLine()
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(t.out, "bye")
				return nil
			case errors.Is(err, ErrDirtyInput):
				fmt.Fprintln(t.out, "⚠️ invalid input ignored, please retype")
				continue
			default:
				return err
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}

		if strings.HasPrefix(line, "/") {
			t.command(ctx, line)
			fmt.Fprintln(t.out, separator)
			continue
		}

		fmt.Fprintln(t.out, "\nTutor>")
		t.ask(ctx, line)
		fmt.Fprintln(t.out, separator)
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.Readline()
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(line) || strings.ContainsRune(line, utf8.RuneError) {
		return "", ErrDirtyInput
	}
	return line, nil
}

func (t *Terminal) command(ctx context.Context, line string) {
	cmd, arg := normalizeCommand(line)
	if cmd == "/quiz" && arg != "" {
		if err := t.takeQuiz(ctx, arg); err != nil {
			fmt.Fprintln(t.out, "quiz error:", err)
		}
		return
	}

	_, out, err := HandleCommand(ctx, t.svc, line)
	if err != nil {
		fmt.Fprintln(t.out, "error:", err)
		return
	}
	fmt.Fprintln(t.out, out)
}

func (t *Terminal) ask(ctx context.Context, question string) {
	st := &typewriterState{}
	_, err := t.svc.StreamTutor(ctx, "", question, func(delta string) {
		t.typewrite(delta, st)
	})
	if err != nil {
		if errors.Is(err, ErrNoLLM) {
			fmt.Fprintln(t.out, "the tutor needs an LLM key (GROQ_API_KEY or GOOGLE_API_KEY)")
			return
		}
		fmt.Fprintln(t.out, "\ntutor error:", err)
		return
	}
	fmt.Fprintln(t.out)
}

// takeQuiz asks every question in turn. Answers are an option number or
// the option text; an empty line skips the question.
func (t *Terminal) takeQuiz(ctx context.Context, key string) error {
	quiz := t.svc.QuizForKey(ctx, key)
	if quiz.Title != "" {
		fmt.Fprintf(t.out, "%s (%s)\n\n", quiz.Title, quiz.Source)
	}

	answers := make(map[int]string, len(quiz.Questions))
	for i, q := range quiz.Questions {
		fmt.Fprintf(t.out, "%d. %s\n", i+1, q.Question)
		for j, o := range q.Options {
			fmt.Fprintf(t.out, "   %d) %s\n", j+1, o)
		}
		t.in.SetPrompt("Answer> ")
		line, err := t.readLine()
		if err != nil {
			if errors.Is(err, ErrDirtyInput) {
				fmt.Fprintln(t.out, "⚠️ invalid input, question skipped")
				continue
			}
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(t.out, "quiz aborted")
				return nil
			}
			return err
		}
		if ans, ok := matchOption(q.Options, line); ok {
			answers[i] = ans
		}
		fmt.Fprintln(t.out)
	}

	res, err := t.svc.GradeAttempt(ctx, quiz, answers)
	if err != nil {
		return err
	}
	for _, it := range res.Items {
		if it.Correct {
			fmt.Fprintf(t.out, "✅ %d. %s\n", it.Index+1, it.CorrectAnswer)
		} else {
			fmt.Fprintf(t.out, "❌ %d. correct answer: %s\n", it.Index+1, it.CorrectAnswer)
		}
	}
	fmt.Fprintf(t.out, "\nScore: %d/%d (%.0f%%)\n%s\n", res.Score, res.Total, res.Percentage, res.Message)
	return nil
}

// matchOption resolves "2" or the option text (case-insensitive).
func matchOption(options []string, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), input) {
			return o, true
		}
	}
	return "", false
}

/*
========================
typewriter output
========================
*/

type typewriterState struct {
	backticks   int
	inCodeBlock bool
}

// typewrite prints one grapheme cluster at a time. Code fences are
// tracked across deltas so sentence breaks are not injected into code.
func (t *Terminal) typewrite(text string, st *typewriterState) {
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		ch := gr.Str()
		fmt.Fprint(t.out, ch)

		if ch == "`" {
			st.backticks++
			if st.backticks == 3 {
				st.inCodeBlock = !st.inCodeBlock
				st.backticks = 0
			}
		} else {
			st.backticks = 0
		}

		if t.charWait > 0 && !st.inCodeBlock {
			time.Sleep(t.charWait)
		}
	}
}
