// Package llm is the text-in/text-out boundary to the language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/advisor/config"
)

// ErrCollaboratorUnavailable marks failures of the model call itself
// (network, auth, quota, malformed response).
var ErrCollaboratorUnavailable = errors.New("language model unavailable")

// Request is a single completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client generates text for a request.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Unavailable wraps err with ErrCollaboratorUnavailable unless it already is.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrCollaboratorUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
}

// New builds the client selected by cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	httpc := NewHTTPClient(cfg.Timeout, cfg.MaxRetries, 500*time.Millisecond)
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL, httpc)
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, httpc)
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
}
