// Package executor runs a plan's steps in order, threading each step's
// output into the placeholders of the steps after it.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/advisor/internal/planner"
	"github.com/mohammad-safakhou/advisor/internal/resolver"
)

// LastKey names the most recent step output in the execution context.
const LastKey = "last"

// Context maps tool names (and LastKey) to the latest output of that tool.
type Context map[string]interface{}

// ToolOutput records one executed step.
type ToolOutput struct {
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args"`
	Output interface{}            `json:"output"`
}

// Failed reports whether the step produced an error payload.
func (o ToolOutput) Failed() bool {
	m, ok := o.Output.(map[string]interface{})
	if !ok {
		return false
	}
	_, has := m["error"]
	return has
}

// Invoker runs a named tool. *tools.Registry satisfies it.
type Invoker interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	Duration func(ctx context.Context, tool string, d time.Duration)
	Failure  func(ctx context.Context, tool string, err error)
}

// Executor is responsible for running plan steps sequentially.
type Executor struct {
	tools       Invoker
	metrics     Metrics
	stepTimeout time.Duration
	logger      *log.Logger
}

// Option configures executor behaviour.
type Option func(*Executor)

// WithMetrics sets executor metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(ex *Executor) {
		ex.metrics = m
	}
}

// WithStepTimeout bounds the wait for each tool call. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(ex *Executor) {
		ex.stepTimeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(ex *Executor) {
		if l != nil {
			ex.logger = l
		}
	}
}

// New creates a new Executor instance.
func New(tools Invoker, opts ...Option) *Executor {
	ex := &Executor{
		tools:  tools,
		logger: log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// Execute runs every step of plan in order. A failing step is recorded as
// {"error": "<tool> failed: <cause>", "args": ...} and the remaining steps
// still run. Step N only sees outputs of steps before it.
func (e *Executor) Execute(ctx context.Context, plan planner.Plan) (Context, []ToolOutput) {
	execCtx := Context{}
	results := make([]ToolOutput, 0, len(plan.Steps))

	for i, step := range plan.Steps {
		args := resolver.ResolveArgs(step.Args, execCtx)

		start := time.Now()
		out, err := e.invoke(ctx, step.Tool, args)
		if err == nil {
			out, err = normalize(out)
		}
		if e.metrics.Duration != nil {
			e.metrics.Duration(ctx, step.Tool, time.Since(start))
		}
		if err != nil {
			e.logger.Printf("step %d (%s) failed: %v", i+1, step.Tool, err)
			if e.metrics.Failure != nil {
				e.metrics.Failure(ctx, step.Tool, err)
			}
			out = map[string]interface{}{
				"error": fmt.Sprintf("%s failed: %v", step.Tool, err),
				"args":  args,
			}
		}

		results = append(results, ToolOutput{Tool: step.Tool, Args: args, Output: out})
		execCtx[step.Tool] = out
		execCtx[LastKey] = out
	}
	return execCtx, results
}

type callResult struct {
	out interface{}
	err error
}

func (e *Executor) invoke(ctx context.Context, tool string, args map[string]interface{}) (interface{}, error) {
	if e.tools == nil {
		return nil, fmt.Errorf("no tools configured")
	}
	if e.stepTimeout <= 0 {
		return e.tools.Execute(ctx, tool, args)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()
	done := make(chan callResult, 1)
	go func() {
		out, err := e.tools.Execute(callCtx, tool, args)
		done <- callResult{out: out, err: err}
	}()
	select {
	case r := <-done:
		return r.out, r.err
	case <-callCtx.Done():
		return nil, fmt.Errorf("timed out after %s: %w", e.stepTimeout, callCtx.Err())
	}
}

// normalize converts a tool payload to plain JSON values so placeholders can
// traverse struct outputs the same way as maps.
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return out, nil
}
