package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNoLLM is returned when no provider is configured.
var ErrNoLLM = errors.New("no llm configured")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one completion call. Schema, when set, is the JSON
// schema the answer must follow; providers that support structured output
// enforce it, the others only see it in the prompt.
type ChatRequest struct {
	System      string
	History     []ChatMessage
	User        string
	Temperature float64
	MaxTokens   int
	Schema      map[string]any
}

// LLM is the outbound chat-completion client.
type LLM interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Stream(ctx context.Context, req ChatRequest, onDelta func(string)) (string, error)
}

// NewLLM builds the configured provider. It returns ErrNoLLM when no API
// key is set.
func NewLLM(ctx context.Context, cfg Config) (LLM, error) {
	if !cfg.LLMEnabled() {
		return nil, ErrNoLLM
	}
	switch cfg.LLMProvider {
	case ProviderGemini:
		return newGeminiClient(ctx, cfg)
	default:
		return newOpenAIClient(cfg), nil
	}
}

// ============================================================
// OpenAI-compatible /chat/completions (Groq, llama.cpp, vLLM)
// ============================================================

type openAIClient struct {
	url    string
	model  string
	apiKey string
	http   *http.Client
}

func newOpenAIClient(cfg Config) *openAIClient {
	return &openAIClient{
		url:    cfg.ChatURL,
		model:  cfg.ChatModel,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type llmResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *openAIClient) payload(req ChatRequest, stream bool) ([]byte, error) {
	messages := make([]ChatMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		if m.Role != "" && m.Content != "" {
			messages = append(messages, m)
		}
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.User})

	p := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": req.Temperature,
		"stream":      stream,
	}
	if req.MaxTokens > 0 {
		p["max_tokens"] = req.MaxTokens
	}
	return json.Marshal(p)
}

func (c *openAIClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("llm http error %d: %s", resp.StatusCode, strings.TrimSpace(string(bb)))
	}
	return resp, nil
}

func (c *openAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	b, err := c.payload(req, false)
	if err != nil {
		return "", err
	}
	resp, err := c.post(ctx, b)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var r llmResp
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("no choices; body=%s", strings.TrimSpace(string(body)))
	}
	if s := strings.TrimSpace(r.Choices[0].Message.Content); s != "" {
		return s, nil
	}
	if t := strings.TrimSpace(r.Choices[0].Text); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("empty content in choices")
}

// Stream reads the SSE body until [DONE]; cancelling ctx aborts the
// request and returns what was received so far.
func (c *openAIClient) Stream(ctx context.Context, req ChatRequest, onDelta func(string)) (string, error) {
	b, err := c.payload(req, true)
	if err != nil {
		return "", err
	}
	resp, err := c.post(ctx, b)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return full.String(), ctx.Err()
		default:
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "data: [DONE]" {
			break
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), err
	}
	return full.String(), nil
}

// extractJSON pulls the first JSON array or object out of a model answer,
// tolerating markdown fences and chatter around it.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
