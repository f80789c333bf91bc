package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	openAIAPIBase      = "https://api.openai.com/v1"
)

// OpenAIGenerator implements Generator using the OpenAI chat completions API.
// It also works against OpenAI-compatible endpoints via WithOpenAIBaseURL.
type OpenAIGenerator struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOpenAIGenerator creates a new OpenAI generator.
func NewOpenAIGenerator(apiKey string, opts ...OpenAIOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		apiKey:       apiKey,
		baseURL:      openAIAPIBase,
		defaultModel: defaultOpenAIModel,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

type OpenAIOption func(*OpenAIGenerator)

func WithOpenAIModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if model != "" {
			g.defaultModel = model
		}
	}
}

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	var messages []map[string]any
	if req.System != "" {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": req.System,
		})
	}
	for _, t := range req.Turns {
		content := t.Content
		if t.Role == "user" && t.Author != "" {
			content = fmt.Sprintf("%s: %s", t.Author, t.Content)
		}
		messages = append(messages, map[string]any{
			"role":    t.Role,
			"content": content,
		})
	}

	body := map[string]any{
		"model":    model,
		"messages": messages,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
