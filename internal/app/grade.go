package app

import (
	"context"

	"github.com/google/uuid"
)

const (
	TierPerfect      = "perfect"
	TierGreat        = "great"
	TierKeepLearning = "keep_learning"
)

type GradeItem struct {
	Index         int    `json:"index"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
}

type GradeResult struct {
	AttemptID  string      `json:"attempt_id,omitempty"`
	Score      int         `json:"score"`
	Total      int         `json:"total"`
	Percentage float64     `json:"percentage"`
	Tier       string      `json:"tier"`
	Message    string      `json:"message"`
	Items      []GradeItem `json:"items"`
}

// GradeQuiz scores answers (question index -> chosen option) by exact
// match. Missing answers count as wrong.
func GradeQuiz(questions []Question, answers map[int]string) GradeResult {
	res := GradeResult{
		Total: len(questions),
		Items: make([]GradeItem, 0, len(questions)),
	}
	for i, q := range questions {
		ans := answers[i]
		ok := ans != "" && ans == q.CorrectAnswer
		if ok {
			res.Score++
		}
		res.Items = append(res.Items, GradeItem{
			Index:         i,
			Question:      q.Question,
			Answer:        ans,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       ok,
		})
	}
	if res.Total > 0 {
		res.Percentage = float64(res.Score) / float64(res.Total) * 100
	}
	res.Tier, res.Message = gradeTier(res.Percentage)
	return res
}

func gradeTier(pct float64) (tier, message string) {
	switch {
	case pct >= 100:
		return TierPerfect, "Perfect score! Excellent work!"
	case pct >= 70:
		return TierGreat, "Great job! Keep up the good work!"
	default:
		return TierKeepLearning, "Keep learning! Try watching the video again and retake the quiz."
	}
}

// SubmitQuiz grades answers against the quiz served under quizID, then
// stores the attempt. Unknown ids yield ErrQuizNotFound.
func (s *Service) SubmitQuiz(ctx context.Context, quizID string, answers map[int]string) (GradeResult, Quiz, error) {
	quiz, err := s.ServedQuiz(ctx, quizID)
	if err != nil {
		return GradeResult{}, Quiz{}, err
	}
	res, err := s.GradeAttempt(ctx, quiz, answers)
	return res, quiz, err
}

// GradeAttempt grades answers against an already served quiz and stores
// the attempt.
func (s *Service) GradeAttempt(ctx context.Context, quiz Quiz, answers map[int]string) (GradeResult, error) {
	res := GradeQuiz(quiz.Questions, answers)
	res.AttemptID = uuid.NewString()

	rec := attemptRecord{
		ID:         res.AttemptID,
		VideoID:    quiz.VideoID,
		Title:      quiz.Title,
		Source:     quiz.Source,
		Score:      res.Score,
		Total:      res.Total,
		Percentage: res.Percentage,
		Answers:    answers,
		CreatedAt:  s.clock(),
	}
	if err := withDBRetry(ctx, 3, 0, func() error { return insertAttempt(ctx, s.db, rec) }); err != nil {
		return GradeResult{}, err
	}

	s.journalRecord("grade", map[string]any{
		"attempt_id": res.AttemptID,
		"quiz_id":    quiz.ID,
		"video_id":   quiz.VideoID,
		"score":      res.Score,
		"total":      res.Total,
		"tier":       res.Tier,
	})
	return res, nil
}
