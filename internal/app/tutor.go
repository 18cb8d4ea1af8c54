package app

import (
	"context"
	"fmt"
	"strings"
)

// tutorRequest builds the passthrough call; the current video, when known,
// is added as a second system-side message.
func (s *Service) tutorRequest(videoID, question string) ChatRequest {
	req := ChatRequest{
		System:      tutorSystemPrompt,
		User:        sanitizeUTF8(question),
		Temperature: 0.5,
		MaxTokens:   1000,
	}
	if v, ok := s.catalog.FindVideo(videoID); ok {
		req.System += "\n\n" + fmt.Sprintf(tutorVideoContext, v.Title, v.ShortDescription())
	}
	return req
}

// AskTutor forwards a learner question to the LLM.
func (s *Service) AskTutor(ctx context.Context, videoID, question string) (string, error) {
	if s.llm == nil {
		return "", ErrNoLLM
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("empty question")
	}
	ans, err := s.llm.Complete(ctx, s.tutorRequest(videoID, question))
	if err != nil {
		return "", err
	}
	s.journalRecord("tutor", map[string]any{"video_id": videoID, "question": question})
	return ans, nil
}

// StreamTutor is AskTutor with incremental output.
func (s *Service) StreamTutor(ctx context.Context, videoID, question string, onDelta func(string)) (string, error) {
	if s.llm == nil {
		return "", ErrNoLLM
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("empty question")
	}
	ans, err := s.llm.Stream(ctx, s.tutorRequest(videoID, question), onDelta)
	if err != nil {
		return ans, err
	}
	s.journalRecord("tutor", map[string]any{"video_id": videoID, "question": question, "stream": true})
	return ans, nil
}
