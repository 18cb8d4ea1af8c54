package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OpenQuestion is answered in free text and judged against the concepts
// a good answer mentions.
type OpenQuestion struct {
	Question         string   `json:"question" jsonschema_description:"Question that needs a short written explanation"`
	ExpectedConcepts []string `json:"expected_concepts" jsonschema_description:"Three to five concepts a good answer mentions"`
}

type Evaluation struct {
	Score           float64  `json:"score" jsonschema_description:"Between 0 and 1"`
	Feedback        string   `json:"feedback" jsonschema_description:"Constructive feedback explaining the score"`
	ConceptsCovered []string `json:"concepts_covered" jsonschema_description:"Expected concepts the answer mentions"`
}

const (
	feedbackNoLLM     = "Unable to evaluate answer"
	feedbackError     = "Error evaluating answer"
	feedbackNoAnswer  = "No answer given"
	minConceptsPerQA  = 3
	openQuestionCount = 3
)

func DefaultOpenQuestions() []OpenQuestion {
	return []OpenQuestion{
		{
			Question:         "Explain how Python handles variable assignment and memory management.",
			ExpectedConcepts: []string{"dynamic typing", "memory allocation", "reference counting", "garbage collection"},
		},
		{
			Question:         "What are the key differences between lists and tuples in Python, and when would you use each?",
			ExpectedConcepts: []string{"mutability", "immutability", "data structure", "performance", "use cases"},
		},
		{
			Question:         "Describe Python's approach to object-oriented programming.",
			ExpectedConcepts: []string{"classes", "objects", "inheritance", "encapsulation", "polymorphism"},
		},
	}
}

func ValidateOpenQuestions(qs []OpenQuestion) error {
	if len(qs) == 0 {
		return fmt.Errorf("no questions")
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("question %d has no text", i+1)
		}
		if len(q.ExpectedConcepts) < minConceptsPerQA {
			return fmt.Errorf("question %d has %d expected concepts", i+1, len(q.ExpectedConcepts))
		}
	}
	return nil
}

// OpenQuestionsFor generates open questions for a video; any failure
// yields DefaultOpenQuestions.
func (s *Service) OpenQuestionsFor(ctx context.Context, videoID, title, description string) []OpenQuestion {
	if videoID != "" && title == "" {
		if v, ok := s.catalog.FindVideo(videoID); ok {
			title, description = v.Title, v.Description
		}
	}
	if s.llm == nil || strings.TrimSpace(title) == "" {
		return DefaultOpenQuestions()
	}

	log.Info().Str("title", title).Msg("Generating Q&A for video")
	qs, err := s.generateOpenQuestions(ctx, title, description)
	if err != nil {
		log.Error().Err(err).Str("title", title).Msg("Error generating Q&A")
		return DefaultOpenQuestions()
	}
	return qs
}

func (s *Service) generateOpenQuestions(ctx context.Context, title, description string) ([]OpenQuestion, error) {
	raw, err := s.llm.Complete(ctx, ChatRequest{
		System:      openQuestionSystemPrompt,
		User:        buildOpenQuestionPrompt(title, truncateGraphemes(description, descriptionLimit), openQuestionCount),
		Temperature: 0.7,
		MaxTokens:   1000,
		Schema:      openQuestionSchema,
	})
	if err != nil {
		return nil, err
	}
	var qs []OpenQuestion
	if err := json.Unmarshal([]byte(extractJSON(raw)), &qs); err != nil {
		return nil, fmt.Errorf("decode open questions: %w", err)
	}
	if err := ValidateOpenQuestions(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// EvaluateAnswer scores a free-text answer. It never fails; the feedback
// says why when no real evaluation happened.
func (s *Service) EvaluateAnswer(ctx context.Context, q OpenQuestion, answer string) Evaluation {
	answer = strings.TrimSpace(answer)

	var ev Evaluation
	switch {
	case answer == "":
		ev = Evaluation{Feedback: feedbackNoAnswer}
	case s.llm == nil:
		ev = Evaluation{Feedback: feedbackNoLLM}
	default:
		var err error
		ev, err = s.evaluate(ctx, q, answer)
		if err != nil {
			log.Error().Err(err).Msg("Error evaluating answer")
			ev = Evaluation{Feedback: feedbackError}
		}
	}
	if ev.ConceptsCovered == nil {
		ev.ConceptsCovered = []string{}
	}

	id := uuid.NewString()
	if err := withDBRetry(ctx, 3, 0, func() error {
		return insertEvaluation(ctx, s.db, id, q.Question, answer, ev, s.clock())
	}); err != nil {
		log.Warn().Err(err).Msg("store evaluation")
	}
	s.journalRecord("evaluate", map[string]any{"id": id, "question": q.Question, "score": ev.Score})
	return ev
}

func (s *Service) evaluate(ctx context.Context, q OpenQuestion, answer string) (Evaluation, error) {
	prompt := fmt.Sprintf(evaluationPrompt,
		q.Question, answer, strings.Join(q.ExpectedConcepts, ", "), schemaText(evaluationSchema))

	raw, err := s.llm.Complete(ctx, ChatRequest{
		System:      evaluationSystemPrompt,
		User:        prompt,
		Temperature: 0.3,
		MaxTokens:   500,
		Schema:      evaluationSchema,
	})
	if err != nil {
		return Evaluation{}, err
	}

	var ev Evaluation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &ev); err != nil {
		return Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 1 {
		ev.Score = 1
	}
	return ev, nil
}
