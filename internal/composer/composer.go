// Package composer writes the final answer from the user's request and the
// outputs of the executed plan.
package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/advisor/internal/executor"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/planner"
)

// AnswerInstructions is the system prompt of the answering model.
const AnswerInstructions = "You are a financial assistant. Answer the client's questions with concrete financial advice and mentor them as much as you can. " +
	"Respond only in English. Your goal is to place suitable investment packages. " +
	"Client data and transactions may be attached as supplemental data extracted via tools. " +
	"Clients and packages share the risk categories 'usor', 'mediu' and 'ridicat'; align recommendations with them."

// SupplementalHeader introduces tool outputs in the answer prompt.
const SupplementalHeader = "\n\n[Supplemental data extracted via tools]\n"

// Composer calls the answering model.
type Composer struct {
	client      llm.Client
	maxTokens   int
	temperature float64
	logger      *log.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithSettings overrides the sampling parameters.
func WithSettings(maxTokens int, temperature float64) Option {
	return func(c *Composer) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(client llm.Client, opts ...Option) *Composer {
	c := &Composer{
		client:      client,
		maxTokens:   900,
		temperature: 0.7,
		logger:      log.New(log.Writer(), "[COMPOSER] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose returns the final answer. An empty result log produces a prompt
// without supplemental data. Model failures are returned as is, unretried.
func (c *Composer) Compose(ctx context.Context, userText string, plan planner.Plan, results []executor.ToolOutput) (string, error) {
	return c.ComposeWith(ctx, userText, plan, results, c.maxTokens)
}

// ComposeWith is Compose with an explicit output budget.
func (c *Composer) ComposeWith(ctx context.Context, userText string, plan planner.Plan, results []executor.ToolOutput, maxTokens int) (string, error) {
	prompt, err := Prompt(userText, plan, results)
	if err != nil {
		return "", err
	}
	answer, err := c.client.Generate(ctx, llm.Request{
		System:      AnswerInstructions,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", llm.Unavailable(err))
	}
	c.logger.Printf("answer composed from %d tool outputs (%d chars)", len(results), len(answer))
	return answer, nil
}

// Prompt builds the answerer's user prompt.
func Prompt(userText string, plan planner.Plan, results []executor.ToolOutput) (string, error) {
	supplemental := ""
	if len(results) > 0 {
		steps := plan.Steps
		if steps == nil {
			steps = []planner.Step{}
		}
		raw, err := json.MarshalIndent(map[string]interface{}{
			"plan":    steps,
			"results": results,
		}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode supplemental data: %w", err)
		}
		supplemental = SupplementalHeader + string(raw)
	}
	return fmt.Sprintf(`Answer the user's question below. Mentor them and be specific. If supplemental data is provided, use it to tailor the answer; otherwise answer normally.

User question:
"""%s"""
%s
`, userText, supplemental), nil
}
