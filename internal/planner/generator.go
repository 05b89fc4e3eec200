// Package planner turns a user request into a validated plan of tool calls.
package planner

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/tools"
)

// Catalog is the part of the tool registry the planner needs.
type Catalog interface {
	Catalog() []tools.ToolSpec
	Known(name string) bool
}

// Settings are the sampling parameters of one model call.
type Settings struct {
	MaxTokens   int
	Temperature float64
}

// Generator asks the routing model for plans.
type Generator struct {
	client   llm.Client
	catalog  Catalog
	plan     Settings
	decision Settings
	logger   *log.Logger
}

// Option configures a Generator.
type Option func(*Generator)

func WithPlanSettings(s Settings) Option     { return func(g *Generator) { g.plan = s } }
func WithDecisionSettings(s Settings) Option { return func(g *Generator) { g.decision = s } }

func WithLogger(l *log.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a plan generator over the given catalog.
func NewGenerator(client llm.Client, catalog Catalog, opts ...Option) *Generator {
	g := &Generator{
		client:   client,
		catalog:  catalog,
		plan:     Settings{MaxTokens: 400},
		decision: Settings{MaxTokens: 300},
		logger:   log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a plan of up to MaxSteps steps. Unusable model output
// yields the fallback plan; only a failed model call is an error.
func (g *Generator) Generate(ctx context.Context, userText string) (Plan, error) {
	raw, err := g.client.Generate(ctx, llm.Request{
		System:      ReasoningInstructions,
		Prompt:      PlanPrompt(g.catalog.Catalog(), userText),
		MaxTokens:   g.plan.MaxTokens,
		Temperature: g.plan.Temperature,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("generate plan: %w", llm.Unavailable(err))
	}
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		g.logger.Printf("unparsable plan, using fallback: %q", truncate(raw, 200))
		return Fallback(), nil
	}
	plan, notes := ParsePlan(obj, g.catalog.Known)
	for _, n := range notes {
		g.logger.Printf("dropped %s", n)
	}
	g.logger.Printf("plan with %d steps (confidence %.2f)", len(plan.Steps), plan.Confidence)
	return plan, nil
}

// Decide produces a single-step plan, or an empty one for skip.
func (g *Generator) Decide(ctx context.Context, userText string) (Plan, error) {
	raw, err := g.client.Generate(ctx, llm.Request{
		System:      ReasoningInstructions,
		Prompt:      DecisionPrompt(g.catalog.Catalog(), userText),
		MaxTokens:   g.decision.MaxTokens,
		Temperature: g.decision.Temperature,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("route decision: %w", llm.Unavailable(err))
	}
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		g.logger.Printf("unparsable decision, using skip: %q", truncate(raw, 200))
		return Fallback(), nil
	}
	plan, notes := ParseDecision(obj, g.catalog.Known)
	for _, n := range notes {
		g.logger.Printf("ignored %s", n)
	}
	return plan, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
