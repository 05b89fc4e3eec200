package llm

import (
	"context"
	"fmt"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	http    *HTTPClient
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
}

// NewOpenAI builds a Chat Completions client. baseURL may be empty.
func NewOpenAI(apiKey, model, baseURL string, httpc *HTTPClient) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if httpc == nil {
		httpc = NewHTTPClient(0, 0, 0)
	}
	return &OpenAI{apiKey: apiKey, model: model, baseURL: strings.TrimRight(baseURL, "/"), http: httpc}, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]chatMsg, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMsg{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMsg{Role: "user", Content: req.Prompt})

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	var out chatResp
	err := o.http.DoJSON(ctx, "POST", o.baseURL+"/chat/completions", headers, chatReq{
		Model:       o.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, &out)
	if err != nil {
		return "", Unavailable(fmt.Errorf("openai: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", Unavailable(fmt.Errorf("openai: no choices returned"))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
