package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(ctx context.Context, cfg Config) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiClient{client: client, model: cfg.ChatModel}, nil
}

func (c *geminiClient) request(req ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	var contents []*genai.Content
	for _, m := range req.History {
		if m.Content == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.User, genai.RoleUser))

	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		schema, err := toGenaiSchema(req.Schema)
		if err != nil {
			return nil, nil, err
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}
	return contents, config, nil
}

func (c *geminiClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	contents, config, err := c.request(req)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates from Gemini")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty content in candidates")
	}
	return text, nil
}

func (c *geminiClient) Stream(ctx context.Context, req ChatRequest, onDelta func(string)) (string, error) {
	contents, config, err := c.request(req)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			return full.String(), err
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return full.String(), nil
}

// toGenaiSchema converts a reflected JSON schema into the SDK type.
// Unknown keywords such as $schema are dropped by the decoder; type names
// are upper-cased to match genai.Type.
func toGenaiSchema(m map[string]any) (*genai.Schema, error) {
	b, err := json.Marshal(upperSchemaTypes(m))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schema genai.Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	return &schema, nil
}

func upperSchemaTypes(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && k == "type" {
				out[k] = strings.ToUpper(s)
				continue
			}
			out[k] = upperSchemaTypes(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = upperSchemaTypes(val)
		}
		return out
	default:
		return v
	}
}
