package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	http    *HTTPClient
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewAnthropic builds a Messages API client. baseURL may be empty.
func NewAnthropic(apiKey, model, baseURL string, httpc *HTTPClient) (*Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if httpc == nil {
		httpc = NewHTTPClient(0, 0, 0)
	}
	return &Anthropic{apiKey: apiKey, model: model, baseURL: strings.TrimRight(baseURL, "/"), http: httpc}, nil
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body := anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var out anthropicResponse
	if err := a.http.DoJSON(ctx, "POST", a.baseURL+"/v1/messages", headers, body, &out); err != nil {
		return "", Unavailable(fmt.Errorf("anthropic: %w", err))
	}
	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", Unavailable(fmt.Errorf("anthropic: empty response (stop_reason=%s)", out.StopReason))
	}
	return strings.TrimSpace(b.String()), nil
}
