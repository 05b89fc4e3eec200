package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/advisor/config"
	"github.com/mohammad-safakhou/advisor/internal/advisor"
	"github.com/mohammad-safakhou/advisor/internal/executor"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/planner"
	"github.com/mohammad-safakhou/advisor/internal/sqlguard"
	"github.com/mohammad-safakhou/advisor/internal/tools"
)

type fakeAdvisor struct {
	answer   *advisor.Answer
	query    *advisor.QueryResult
	err      error
	gotText  string
	gotHint  string
	deadline bool
}

func (f *fakeAdvisor) GeneratePlanAndAnswer(ctx context.Context, text string) (*advisor.Answer, error) {
	_, f.deadline = ctx.Deadline()
	f.gotText = text
	return f.answer, f.err
}

func (f *fakeAdvisor) RouteAndAnswer(ctx context.Context, text string) (*advisor.Answer, error) {
	f.gotText = "route:" + text
	return f.answer, f.err
}

func (f *fakeAdvisor) SanitizeAndRun(ctx context.Context, prompt, hint string) (*advisor.QueryResult, error) {
	f.gotText, f.gotHint = prompt, hint
	return f.query, f.err
}

func (f *fakeAdvisor) Tools() []tools.ToolSpec {
	return []tools.ToolSpec{{Name: "database_info", Description: "client profile"}, {Name: "skip", Description: "no tool"}}
}

func serve(t *testing.T, svc Advisor, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := New(config.ServerConfig{RequestTimeout: time.Minute}, svc)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestChatResponseShape(t *testing.T) {
	svc := &fakeAdvisor{answer: &advisor.Answer{
		RunID:       "run-1",
		Plan:        []planner.Step{{Tool: "database_info", Args: map[string]interface{}{"client_id": float64(1)}}},
		Results:     []executor.ToolOutput{{Tool: "database_info", Args: map[string]interface{}{}, Output: map[string]interface{}{"risk_profile": "mediu"}}},
		FinalAnswer: "Balanced packages fit you.",
		Why:         "profile first",
		Confidence:  0.8,
	}}
	rec, out := serve(t, svc, http.MethodPost, "/api/agent/chat", `{"message":"what should I invest in?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotText != "what should I invest in?" {
		t.Fatalf("message not forwarded: %q", svc.gotText)
	}
	if !svc.deadline {
		t.Fatalf("expected request timeout on context")
	}
	for _, k := range []string{"response", "tool_plan", "tool_results", "why", "confidence", "run_id"} {
		if _, ok := out[k]; !ok {
			t.Fatalf("missing %q in %v", k, out)
		}
	}
	if out["response"] != "Balanced packages fit you." || out["run_id"] != "run-1" || out["confidence"] != 0.8 {
		t.Fatalf("unexpected body: %v", out)
	}
	plan := out["tool_plan"].([]interface{})
	if plan[0].(map[string]interface{})["tool"] != "database_info" {
		t.Fatalf("unexpected plan: %v", plan)
	}
}

func TestChatEmptyResultsEncodeAsArray(t *testing.T) {
	svc := &fakeAdvisor{answer: &advisor.Answer{RunID: "r", Plan: []planner.Step{}, FinalAnswer: "hi"}}
	rec, _ := serve(t, svc, http.MethodPost, "/api/agent/chat", `{"message":"hello"}`)
	if !strings.Contains(rec.Body.String(), `"tool_results":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestRouteUsesSingleStepFlow(t *testing.T) {
	svc := &fakeAdvisor{answer: &advisor.Answer{RunID: "r", FinalAnswer: "ok"}}
	rec, _ := serve(t, svc, http.MethodPost, "/api/agent/route", `{"message":"hi"}`)
	if rec.Code != http.StatusOK || svc.gotText != "route:hi" {
		t.Fatalf("route not used: %d %q", rec.Code, svc.gotText)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		err  error
		code int
		sql  string
	}{
		{"empty input", "/api/agent/chat", `{"message":""}`, advisor.ErrEmptyInput, http.StatusBadRequest, ""},
		{"collaborator", "/api/agent/chat", `{"message":"x"}`, fmt.Errorf("generate plan: %w", llm.Unavailable(errors.New("503"))), http.StatusBadGateway, ""},
		{"rejected", "/api/query", `{"prompt":"drop it"}`, &advisor.QueryError{SQL: "DROP TABLE clients", Err: fmt.Errorf("%w: forbidden keyword", sqlguard.ErrRejectedQuery)}, http.StatusBadRequest, "DROP TABLE clients"},
		{"query failed", "/api/query", `{"prompt":"x"}`, &advisor.QueryError{SQL: "SELECT nope LIMIT 100;", Err: errors.New("column nope does not exist")}, http.StatusInternalServerError, "SELECT nope LIMIT 100;"},
		{"no database", "/api/query", `{"prompt":"x"}`, advisor.ErrNoDatabase, http.StatusServiceUnavailable, ""},
		{"timeout", "/api/agent/chat", `{"message":"x"}`, fmt.Errorf("compose: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ""},
		{"other", "/api/agent/chat", `{"message":"x"}`, errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := serve(t, &fakeAdvisor{err: tc.err}, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if out["error"] == nil || out["error"] == "" {
				t.Fatalf("missing error message: %v", out)
			}
			if tc.sql != "" && out["sql"] != tc.sql {
				t.Fatalf("expected sql %q, got %v", tc.sql, out["sql"])
			}
			if tc.sql == "" {
				if _, ok := out["sql"]; ok {
					t.Fatalf("unexpected sql field: %v", out)
				}
			}
		})
	}
}

func TestQueryForwardsHint(t *testing.T) {
	svc := &fakeAdvisor{query: &advisor.QueryResult{RunID: "q", SQL: "SELECT 1 LIMIT 100;", Rows: []map[string]interface{}{{"n": 1}}}}
	rec, out := serve(t, svc, http.MethodPost, "/api/query", `{"prompt":"count clients","table_hint":"clients"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotText != "count clients" || svc.gotHint != "clients" {
		t.Fatalf("unexpected forwarding: %q %q", svc.gotText, svc.gotHint)
	}
	if out["sql"] != "SELECT 1 LIMIT 100;" || len(out["rows"].([]interface{})) != 1 {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestMalformedBody(t *testing.T) {
	rec, _ := serve(t, &fakeAdvisor{}, http.MethodPost, "/api/agent/chat", `{"message":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestToolsList(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	h := &ToolsHandler{Svc: &fakeAdvisor{}}
	if err := h.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	var specs []tools.ToolSpec
	if err := json.Unmarshal(rec.Body.Bytes(), &specs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(specs) != 2 || specs[1].Name != "skip" {
		t.Fatalf("unexpected catalog: %+v", specs)
	}
}

func TestHealthz(t *testing.T) {
	rec, _ := serve(t, &fakeAdvisor{}, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	if err := Migrate("", "", "up", 0); err == nil {
		t.Fatalf("expected error without dsn")
	}
	if err := Migrate("", "postgres://x", "up", -1); err == nil {
		t.Fatalf("expected error for negative steps")
	}
}
