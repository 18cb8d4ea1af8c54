package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	QuizSourceBank    = "bank"
	QuizSourceCache   = "cache"
	QuizSourceLLM     = "llm"
	QuizSourceDefault = "default"

	quizQuestionCount = 3
)

var (
	ErrInvalidQuiz  = errors.New("invalid quiz")
	ErrQuizNotFound = errors.New("quiz not found")
)

// Quiz is a question set together with where it came from. ID names one
// served copy; answers are graded against exactly that copy.
type Quiz struct {
	ID        string     `json:"id,omitempty"`
	VideoID   string     `json:"video_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Source    string     `json:"source"`
	Questions []Question `json:"questions"`
}

// ValidateQuiz checks that every item is answerable: text, at least two
// options, and a correct answer that is exactly one of the options.
func ValidateQuiz(qs []Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuiz)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidQuiz, i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidQuiz, i+1, len(q.Options))
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("%w: question %d has no correct answer", ErrInvalidQuiz, i+1)
		}
		matches := 0
		for _, o := range q.Options {
			if o == q.CorrectAnswer {
				matches++
			}
		}
		if matches != 1 {
			return fmt.Errorf("%w: correct answer of question %d not in options", ErrInvalidQuiz, i+1)
		}
	}
	return nil
}

// QuizFor never fails: bank, cache and LLM are tried in that order and
// DefaultQuiz is the last resort.
func (s *Service) QuizFor(ctx context.Context, videoID, title, description string) Quiz {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	q := s.resolveQuiz(ctx, videoID, title, description)
	q.ID = uuid.NewString()
	q.VideoID = videoID
	if q.Title == "" {
		q.Title = title
	}
	s.rememberQuiz(ctx, q)

	s.journalRecord("quiz", map[string]any{
		"quiz_id":   q.ID,
		"video_id":  videoID,
		"title":     q.Title,
		"source":    q.Source,
		"questions": len(q.Questions),
	})
	return q
}

func (s *Service) resolveQuiz(ctx context.Context, videoID, title, description string) Quiz {
	// 1) bank, by id then by topic
	if videoID != "" {
		if qs, ok := bankQuiz(videoID); ok {
			return Quiz{Source: QuizSourceBank, Questions: qs}
		}
		if v, ok := s.catalog.FindVideo(videoID); ok {
			if qs, ok := bankQuiz(v.Topic); ok {
				return Quiz{Source: QuizSourceBank, Title: v.Title, Questions: qs}
			}
			if title == "" {
				title, description = v.Title, v.Description
			}
		}
	}

	if title == "" && description == "" {
		return Quiz{Source: QuizSourceDefault, Questions: DefaultQuiz()}
	}

	// 2) cache
	key := quizCacheKey(title, description)
	if qs, ok := s.cachedQuiz(ctx, key); ok {
		return Quiz{Source: QuizSourceCache, Title: title, Questions: qs}
	}

	// 3) llm
	if s.llm != nil {
		qs, err := s.generateQuiz(ctx, title, description)
		if err == nil {
			s.quizCache.Add(key, cloneQuestions(qs))
			if err := withDBRetry(ctx, 3, 0, func() error {
				return storeCachedQuiz(ctx, s.db, key, title, qs, s.clock())
			}); err != nil {
				log.Warn().Err(err).Msg("store generated quiz")
			}
			log.Info().Str("title", title).Int("questions", len(qs)).Msg("Successfully generated quiz")
			return Quiz{Source: QuizSourceLLM, Title: title, Questions: qs}
		}
		log.Error().Err(err).Str("title", title).Msg("Error generating quiz")
	}

	// 4) default
	return Quiz{Source: QuizSourceDefault, Title: title, Questions: DefaultQuiz()}
}

// rememberQuiz keeps a served quiz so a later submission grades the same
// questions. A failed write is logged; the in-memory copy still serves.
func (s *Service) rememberQuiz(ctx context.Context, q Quiz) {
	s.servedQuizzes.Add(q.ID, cloneQuiz(q))
	if err := withDBRetry(ctx, 3, 0, func() error {
		return storeServedQuiz(ctx, s.db, q, s.clock())
	}); err != nil {
		log.Warn().Err(err).Str("quiz_id", q.ID).Msg("store served quiz")
	}
}

// ServedQuiz returns the quiz handed out under id.
func (s *Service) ServedQuiz(ctx context.Context, id string) (Quiz, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Quiz{}, ErrQuizNotFound
	}
	if q, ok := s.servedQuizzes.Get(id); ok {
		return cloneQuiz(q), nil
	}
	q, ok, err := loadServedQuiz(ctx, s.db, id)
	if err != nil {
		return Quiz{}, err
	}
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	s.servedQuizzes.Add(id, cloneQuiz(q))
	return q, nil
}

func cloneQuiz(q Quiz) Quiz {
	q.Questions = cloneQuestions(q.Questions)
	return q
}

func (s *Service) cachedQuiz(ctx context.Context, key string) ([]Question, bool) {
	if qs, ok := s.quizCache.Get(key); ok {
		return cloneQuestions(qs), true
	}
	qs, ok, err := loadCachedQuiz(ctx, s.db, key)
	if err != nil {
		log.Warn().Err(err).Msg("load cached quiz")
		return nil, false
	}
	if !ok || ValidateQuiz(qs) != nil {
		return nil, false
	}
	s.quizCache.Add(key, cloneQuestions(qs))
	return qs, true
}

func (s *Service) generateQuiz(ctx context.Context, title, description string) ([]Question, error) {
	log.Info().Str("title", title).Msg("Generating quiz for video")

	raw, err := s.llm.Complete(ctx, ChatRequest{
		System:      quizSystemPrompt,
		User:        buildQuizPrompt(title, truncateGraphemes(description, descriptionLimit), quizQuestionCount),
		Temperature: 0.7,
		MaxTokens:   1000,
		Schema:      quizSchema,
	})
	if err != nil {
		return nil, err
	}

	var qs []Question
	if err := json.Unmarshal([]byte(extractJSON(raw)), &qs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	for i := range qs {
		qs[i].Question = strings.TrimSpace(qs[i].Question)
	}
	if err := ValidateQuiz(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func quizCacheKey(title, description string) string {
	h := sha256.New()
	h.Write([]byte(normalizeKey(title)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeKey(description)))
	return hex.EncodeToString(h.Sum(nil))
}
