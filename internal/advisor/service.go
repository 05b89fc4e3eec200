// Package advisor exposes the two flows of the assistant: plan, execute and
// answer a chat message, and translate a prompt to guarded read-only SQL.
package advisor

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mohammad-safakhou/advisor/internal/audit"
	"github.com/mohammad-safakhou/advisor/internal/composer"
	"github.com/mohammad-safakhou/advisor/internal/executor"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/planner"
	"github.com/mohammad-safakhou/advisor/internal/telemetry"
	"github.com/mohammad-safakhou/advisor/internal/tools"
)

// Flow labels used in metrics and audit records.
const (
	FlowPlan  = "plan"
	FlowRoute = "route"
)

// QueryRunner executes sanitized SQL read-only. *store.Store satisfies it.
type QueryRunner interface {
	QueryReadOnly(ctx context.Context, query string) ([]map[string]interface{}, error)
}

// SchemaSource describes the database for the SQL prompt.
type SchemaSource interface {
	SchemaBrief(ctx context.Context, maxColsPerTable int) (string, error)
}

// Answer is the result of a chat flow.
type Answer struct {
	RunID       string                `json:"run_id"`
	Plan        []planner.Step        `json:"plan"`
	Results     []executor.ToolOutput `json:"results"`
	FinalAnswer string                `json:"final_answer"`
	Why         string                `json:"why"`
	Confidence  float64               `json:"confidence"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Registry *tools.Registry
	Planner  *planner.Generator
	Executor *executor.Executor
	Composer *composer.Composer
	// LLM writes SQL for SanitizeAndRun.
	LLM      llm.Client
	Queries  QueryRunner
	Schema   SchemaSource
	Recorder audit.Recorder
	Metrics  *telemetry.Metrics
}

// QuerySettings bound the natural-language SQL flow.
type QuerySettings struct {
	Generation    planner.Settings
	DefaultLimit  int
	SchemaColumns int
}

// Service is the process-wide entry point. It holds no per-request state.
type Service struct {
	Deps
	query             QuerySettings
	routeAnswerTokens int
	logger            *log.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithQuerySettings(q QuerySettings) Option {
	return func(s *Service) { s.query = q }
}

// WithRouteAnswerTokens sets the answer budget of the single-step flow.
func WithRouteAnswerTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.routeAnswerTokens = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(deps Deps, opts ...Option) *Service {
	if deps.Recorder == nil {
		deps.Recorder = audit.Nop{}
	}
	s := &Service{
		Deps: deps,
		query: QuerySettings{
			Generation:    planner.Settings{MaxTokens: 500},
			DefaultLimit:  100,
			SchemaColumns: 8,
		},
		routeAnswerTokens: 700,
		logger:            log.New(log.Writer(), "[ADVISOR] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tools lists the catalog offered to the planner.
func (s *Service) Tools() []tools.ToolSpec {
	return s.Registry.Catalog()
}

// GeneratePlanAndAnswer plans up to three tool calls, runs them and composes
// the final answer. Tool failures are embedded in the results; a failing
// model call fails the whole request.
func (s *Service) GeneratePlanAndAnswer(ctx context.Context, userText string) (*Answer, error) {
	return s.run(ctx, FlowPlan, userText, s.Planner.Generate, 0)
}

// RouteAndAnswer is the single-step variant: at most one tool call.
func (s *Service) RouteAndAnswer(ctx context.Context, userText string) (*Answer, error) {
	return s.run(ctx, FlowRoute, userText, s.Planner.Decide, s.routeAnswerTokens)
}

type planFunc func(ctx context.Context, userText string) (planner.Plan, error)

func (s *Service) run(ctx context.Context, flow, userText string, plan planFunc, answerTokens int) (ans *Answer, err error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, ErrEmptyInput
	}
	start := time.Now()
	runID := uuid.NewString()
	ctx, span := telemetry.Tracer().Start(ctx, "advisor."+flow)
	span.SetAttributes(attribute.String("advisor.run_id", runID))

	var p planner.Plan
	var results []executor.ToolOutput
	defer func() {
		telemetry.EndSpan(span, err)
		s.Metrics.ObserveRun(flow, len(p.Steps), time.Since(start), err)
		rec := audit.RunRecord{
			RunID:      runID,
			Flow:       flow,
			UserText:   userText,
			Plan:       p,
			Results:    results,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		} else {
			rec.Answer = ans.FinalAnswer
		}
		s.Recorder.RecordRun(ctx, rec)
	}()

	planCtx, planSpan := telemetry.Tracer().Start(ctx, "planner."+flow)
	p, err = plan(planCtx, userText)
	telemetry.EndSpan(planSpan, err)
	if err != nil {
		s.logger.Printf("run %s: planning failed: %v", runID, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("advisor.plan_steps", len(p.Steps)))

	execCtx, execSpan := telemetry.Tracer().Start(ctx, "executor.execute")
	_, results = s.Executor.Execute(execCtx, p)
	execSpan.End()

	composeCtx, composeSpan := telemetry.Tracer().Start(ctx, "composer.compose")
	var answer string
	if answerTokens > 0 {
		answer, err = s.Composer.ComposeWith(composeCtx, userText, p, results, answerTokens)
	} else {
		answer, err = s.Composer.Compose(composeCtx, userText, p, results)
	}
	telemetry.EndSpan(composeSpan, err)
	if err != nil {
		s.logger.Printf("run %s: compose failed: %v", runID, err)
		return nil, err
	}

	steps := p.Steps
	if steps == nil {
		steps = []planner.Step{}
	}
	s.logger.Printf("run %s (%s): %d steps in %v", runID, flow, len(steps), time.Since(start))
	return &Answer{
		RunID:       runID,
		Plan:        steps,
		Results:     results,
		FinalAnswer: answer,
		Why:         p.Rationale,
		Confidence:  p.Confidence,
	}, nil
}
