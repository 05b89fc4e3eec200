package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/advisor/internal/advisor"
	"github.com/mohammad-safakhou/advisor/internal/executor"
	"github.com/mohammad-safakhou/advisor/internal/planner"
	"github.com/mohammad-safakhou/advisor/internal/tools"
)

// Advisor is the service surface used by the handlers. *advisor.Service
// satisfies it.
type Advisor interface {
	GeneratePlanAndAnswer(ctx context.Context, userText string) (*advisor.Answer, error)
	RouteAndAnswer(ctx context.Context, userText string) (*advisor.Answer, error)
	SanitizeAndRun(ctx context.Context, prompt, tableHint string) (*advisor.QueryResult, error)
	Tools() []tools.ToolSpec
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response    string                `json:"response"`
	ToolPlan    []planner.Step        `json:"tool_plan"`
	ToolResults []executor.ToolOutput `json:"tool_results"`
	Why         string                `json:"why"`
	Confidence  float64               `json:"confidence"`
	RunID       string                `json:"run_id"`
}

// AgentHandler serves the chat flows.
type AgentHandler struct {
	Svc     Advisor
	Timeout time.Duration
}

func (h *AgentHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
	g.POST("/route", h.route)
}

func (h *AgentHandler) chat(c echo.Context) error {
	return h.answer(c, h.Svc.GeneratePlanAndAnswer)
}

func (h *AgentHandler) route(c echo.Context) error {
	return h.answer(c, h.Svc.RouteAndAnswer)
}

func (h *AgentHandler) answer(c echo.Context, flow func(context.Context, string) (*advisor.Answer, error)) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx, cancel := withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	ans, err := flow(ctx, req.Message)
	if err != nil {
		return err
	}
	results := ans.Results
	if results == nil {
		results = []executor.ToolOutput{}
	}
	return c.JSON(http.StatusOK, chatResponse{
		Response:    ans.FinalAnswer,
		ToolPlan:    ans.Plan,
		ToolResults: results,
		Why:         ans.Why,
		Confidence:  ans.Confidence,
		RunID:       ans.RunID,
	})
}

type queryRequest struct {
	Prompt    string `json:"prompt"`
	TableHint string `json:"table_hint"`
}

// QueryHandler serves natural-language SQL.
type QueryHandler struct {
	Svc     Advisor
	Timeout time.Duration
}

func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("", h.run)
}

func (h *QueryHandler) run(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx, cancel := withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	res, err := h.Svc.SanitizeAndRun(ctx, req.Prompt, req.TableHint)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ToolsHandler exposes the tool catalog.
type ToolsHandler struct {
	Svc Advisor
}

func (h *ToolsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
}

func (h *ToolsHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Svc.Tools())
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
