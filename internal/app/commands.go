package app

import (
	"context"
	"fmt"
	"strings"
)

const helpText = `
/help
    Show this help message.

/videos
    List every video in the catalog with its topic.

/video <topic>
    Show the video link for a topic (the beginner course when unknown).

/search <query>
    Find playlists and courses in the catalog.

/quiz <video|topic>
    Take the multiple-choice quiz for a video.

/qa <video|topic>
    Show open questions for a video.

/stats [video]
    Show quiz attempts, best and average score.

/ask <question>
    Ask the tutor. Plain text without a slash does the same.

exit
    Quit (terminal only).
`

// normalizeCommand splits "/cmd arg..." after collapsing whitespace.
// Input that is not a command yields an empty cmd.
func normalizeCommand(input string) (cmd string, arg string) {
	s := strings.ReplaceAll(strings.TrimSpace(input), "　", " ")
	s = strings.Join(strings.Fields(s), " ")
	if !strings.HasPrefix(s, "/") {
		return "", ""
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return strings.ToLower(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return strings.ToLower(s), ""
}

// QuizForKey resolves a catalog video (id, link or topic) and serves its
// quiz; other keys go to the quiz bank with the default fallback.
func (s *Service) QuizForKey(ctx context.Context, key string) Quiz {
	if v, ok := s.catalog.FindVideo(key); ok {
		return s.QuizFor(ctx, v.ID, v.Title, v.Description)
	}
	if qs, ok := bankQuiz(key); ok {
		return Quiz{Title: key, Source: QuizSourceBank, Questions: qs}
	}
	return Quiz{Title: key, Source: QuizSourceDefault, Questions: DefaultQuiz()}
}

// HandleCommand runs a slash command for the terminal and the web API.
// It returns handled=false when input is not a command.
func HandleCommand(ctx context.Context, svc *Service, input string) (bool, string, error) {
	cmd, arg := normalizeCommand(input)
	if cmd == "" {
		return false, "", nil
	}

	switch cmd {

	case "/help":
		return true, strings.TrimSpace(helpText), nil

	case "/videos":
		videos := svc.Catalog().Videos()
		var b strings.Builder
		for _, v := range videos {
			fmt.Fprintf(&b, "[%s] %s\n    %s\n", v.Topic, v.Title, v.Link)
		}
		fmt.Fprintf(&b, "default: %s", svc.Catalog().DefaultLink())
		return true, b.String(), nil

	case "/video":
		if arg == "" {
			return true, "usage: /video <topic>", nil
		}
		return true, svc.LookupVideo(arg), nil

	case "/search":
		if arg == "" {
			return true, "usage: /search <query>", nil
		}
		videos, err := svc.Search(ctx, arg)
		if err != nil {
			return true, "", err
		}
		if len(videos) == 0 {
			return true, "no courses found", nil
		}
		var b strings.Builder
		for i, v := range videos {
			if i > 0 {
				b.WriteString("\n----------------------\n")
			}
			fmt.Fprintf(&b, "%s\n%s", v.Title, v.Link)
			if v.Duration != "" {
				fmt.Fprintf(&b, " (%s)", v.Duration)
			}
		}
		return true, b.String(), nil

	case "/quiz":
		if arg == "" {
			return true, "usage: /quiz <video|topic>", nil
		}
		return true, formatQuiz(svc.QuizForKey(ctx, arg)), nil

	case "/qa":
		if arg == "" {
			return true, "usage: /qa <video|topic>", nil
		}
		var qs []OpenQuestion
		if v, ok := svc.Catalog().FindVideo(arg); ok {
			qs = svc.OpenQuestionsFor(ctx, v.ID, v.Title, v.Description)
		} else {
			qs = svc.OpenQuestionsFor(ctx, "", arg, "")
		}
		var b strings.Builder
		for i, q := range qs {
			fmt.Fprintf(&b, "%d. %s\n   concepts: %s\n", i+1, q.Question, strings.Join(q.ExpectedConcepts, ", "))
		}
		return true, strings.TrimRight(b.String(), "\n"), nil

	case "/stats":
		videoID := arg
		if v, ok := svc.Catalog().FindVideo(arg); ok {
			videoID = v.ID
		}
		st, err := svc.Stats(ctx, videoID)
		if err != nil {
			return true, "", err
		}
		if st.Attempts == 0 {
			return true, "no attempts yet", nil
		}
		return true, fmt.Sprintf("attempts: %d\nbest: %.0f%%\naverage: %.0f%%\nlast: %s",
			st.Attempts, st.Best, st.Average, st.LastAt), nil

	case "/ask":
		if arg == "" {
			return true, "usage: /ask <question>", nil
		}
		ans, err := svc.AskTutor(ctx, "", arg)
		if err != nil {
			return true, "", err
		}
		return true, ans, nil

	default:
		return true, fmt.Sprintf("unknown command: %s", cmd), nil
	}
}

func formatQuiz(q Quiz) string {
	var b strings.Builder
	if q.Title != "" {
		fmt.Fprintf(&b, "%s (%s)\n\n", q.Title, q.Source)
	}
	for i, item := range q.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Question)
		for j, o := range item.Options {
			fmt.Fprintf(&b, "   %c) %s\n", 'a'+j, o)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
