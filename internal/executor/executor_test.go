package executor

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/advisor/internal/planner"
	"github.com/mohammad-safakhou/advisor/internal/tools"
)

type recordingTool struct {
	name  string
	calls []map[string]interface{}
	out   interface{}
	err   error
}

func (r *recordingTool) Spec() tools.ToolSpec {
	return tools.ToolSpec{Name: r.name, Description: r.name}
}

func (r *recordingTool) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	r.calls = append(r.calls, args)
	return r.out, r.err
}

func quiet() Option { return WithLogger(log.New(io.Discard, "", 0)) }

func mustRegistry(t *testing.T, list ...tools.Tool) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(list...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestExecuteFailingStepDoesNotAbortPlan(t *testing.T) {
	broken := &recordingTool{name: "broken", err: errors.New("db down")}
	ok := &recordingTool{name: "ok", out: map[string]interface{}{"v": 1}}
	var failures []string
	ex := New(mustRegistry(t, broken, ok), quiet(), WithMetrics(Metrics{
		Failure: func(ctx context.Context, tool string, err error) { failures = append(failures, tool) },
	}))

	plan := planner.Plan{Steps: []planner.Step{
		{Tool: "broken", Args: map[string]interface{}{"x": 1}},
		{Tool: "ok", Args: map[string]interface{}{"prev": "{{last.error}}"}},
	}}
	ctx, results := ex.Execute(context.Background(), plan)

	if len(results) != 2 || len(ok.calls) != 1 {
		t.Fatalf("second step must run, results=%d calls=%d", len(results), len(ok.calls))
	}
	payload, _ := results[0].Output.(map[string]interface{})
	if payload["error"] != "broken failed: db down" {
		t.Fatalf("unexpected error payload %v", payload)
	}
	if args, _ := payload["args"].(map[string]interface{}); args["x"] != 1 {
		t.Fatalf("error payload must carry resolved args, got %v", payload["args"])
	}
	if !results[0].Failed() || results[1].Failed() {
		t.Fatalf("unexpected Failed flags")
	}
	if ok.calls[0]["prev"] != "broken failed: db down" {
		t.Fatalf("last must point at the error payload, got %v", ok.calls[0]["prev"])
	}
	if len(failures) != 1 || failures[0] != "broken" {
		t.Fatalf("failure metric not reported: %v", failures)
	}
	if _, has := ctx["ok"]; !has {
		t.Fatalf("context missing ok output")
	}
}

func TestExecuteUnknownToolIsStepFailure(t *testing.T) {
	ex := New(mustRegistry(t), quiet())
	_, results := ex.Execute(context.Background(), planner.Plan{Steps: []planner.Step{{Tool: "ghost"}}})
	if len(results) != 1 || !results[0].Failed() {
		t.Fatalf("expected recorded failure, got %+v", results)
	}
	msg := results[0].Output.(map[string]interface{})["error"].(string)
	if !strings.HasPrefix(msg, "ghost failed: ") || !strings.Contains(msg, tools.ErrUnknownTool.Error()) {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestExecuteResolvesOnlyEarlierSteps(t *testing.T) {
	first := &recordingTool{name: "first", out: map[string]interface{}{"id": "a"}}
	second := &recordingTool{name: "second", out: map[string]interface{}{"id": "b"}}
	ex := New(mustRegistry(t, first, second), quiet())

	plan := planner.Plan{Steps: []planner.Step{
		{Tool: "first", Args: map[string]interface{}{"peek": "{{second.id}}"}},
		{Tool: "second", Args: map[string]interface{}{"from": "{{first.id}}", "last": "{{last.id}}"}},
	}}
	ctx, _ := ex.Execute(context.Background(), plan)

	if first.calls[0]["peek"] != nil {
		t.Fatalf("step 1 must not see step 2 output, got %v", first.calls[0]["peek"])
	}
	if second.calls[0]["from"] != "a" || second.calls[0]["last"] != "a" {
		t.Fatalf("unexpected resolved args %v", second.calls[0])
	}
	last := ctx[LastKey].(map[string]interface{})
	if last["id"] != "b" {
		t.Fatalf("last must be the final output, got %v", last)
	}
}

func TestExecuteNormalizesStructOutputs(t *testing.T) {
	type profile struct {
		Risk string `json:"risk_profile"`
	}
	src := &recordingTool{name: "src", out: profile{Risk: "ridicat"}}
	dst := &recordingTool{name: "dst"}
	ex := New(mustRegistry(t, src, dst), quiet())
	ex.Execute(context.Background(), planner.Plan{Steps: []planner.Step{
		{Tool: "src"},
		{Tool: "dst", Args: map[string]interface{}{"risk": "{{src.risk_profile}}"}},
	}})
	if dst.calls[0]["risk"] != "ridicat" {
		t.Fatalf("expected struct field to resolve, got %v", dst.calls[0]["risk"])
	}
}

type slowTool struct{}

func (slowTool) Spec() tools.ToolSpec { return tools.ToolSpec{Name: "slow"} }
func (slowTool) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	select {
	case <-time.After(2 * time.Second):
		return "late", nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestExecuteStepTimeout(t *testing.T) {
	ex := New(mustRegistry(t, slowTool{}), quiet(), WithStepTimeout(20*time.Millisecond))
	start := time.Now()
	_, results := ex.Execute(context.Background(), planner.Plan{Steps: []planner.Step{{Tool: "slow"}}})
	if time.Since(start) > time.Second {
		t.Fatalf("step timeout not enforced")
	}
	if !results[0].Failed() {
		t.Fatalf("expected timeout failure, got %+v", results[0])
	}
}

func TestExecuteEmptyPlan(t *testing.T) {
	ctx, results := New(mustRegistry(t), quiet()).Execute(context.Background(), planner.Plan{})
	if len(ctx) != 0 || len(results) != 0 {
		t.Fatalf("expected nothing, got %v %v", ctx, results)
	}
}

func TestExecuteProfileThenPackages(t *testing.T) {
	reg := mustRegistry(t, tools.Builtin(tools.Deps{})...)
	plan := planner.Plan{Steps: []planner.Step{
		{Tool: tools.DatabaseInfoTool, Args: map[string]interface{}{}},
		{Tool: tools.InvestmentPackagesTool, Args: map[string]interface{}{"risk": "{{database_info.risk_profile}}"}},
	}}
	_, results := New(reg, quiet()).Execute(context.Background(), plan)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Args["risk"] != tools.RiskMedium {
		t.Fatalf("risk placeholder not resolved before invocation: %v", results[1].Args)
	}
	out := results[1].Output.(map[string]interface{})
	pkgs, _ := out["packages"].([]interface{})
	if out["risk"] != tools.RiskMedium || len(pkgs) == 0 {
		t.Fatalf("unexpected packages output %v", out)
	}
}
