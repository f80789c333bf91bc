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
	defaultClaudeModel  = "claude-sonnet-4-5-20250929"
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicGenerator implements Generator using the Anthropic Messages API
// via net/http.
type AnthropicGenerator struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewAnthropicGenerator creates a new Anthropic generator.
func NewAnthropicGenerator(apiKey string, opts ...AnthropicOption) *AnthropicGenerator {
	g := &AnthropicGenerator{
		apiKey:       apiKey,
		baseURL:      anthropicAPIBase,
		defaultModel: defaultClaudeModel,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

type AnthropicOption func(*AnthropicGenerator)

func WithAnthropicModel(model string) AnthropicOption {
	return func(g *AnthropicGenerator) {
		if model != "" {
			g.defaultModel = model
		}
	}
}

func WithAnthropicBaseURL(baseURL string) AnthropicOption {
	return func(g *AnthropicGenerator) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	var messages []map[string]any
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
		"model":      model,
		"max_tokens": 1024,
		"messages":   messages,
	}
	if req.System != "" {
		body["system"] = req.System
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	var out strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
}
