package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/advisor/internal/advisor"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/sqlguard"
)

// errorHandler renders every failure as {"error": msg}; query failures also
// carry the offending SQL.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := classify(err)
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func classify(err error) (int, map[string]interface{}) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, map[string]interface{}{"error": msg}
	}

	var qe *advisor.QueryError
	if errors.As(err, &qe) {
		code := http.StatusInternalServerError
		if errors.Is(err, sqlguard.ErrRejectedQuery) {
			code = http.StatusBadRequest
		}
		return code, map[string]interface{}{"error": qe.Err.Error(), "sql": qe.SQL}
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, advisor.ErrEmptyInput), errors.Is(err, sqlguard.ErrRejectedQuery):
		code = http.StatusBadRequest
	case errors.Is(err, llm.ErrCollaboratorUnavailable):
		code = http.StatusBadGateway
	case errors.Is(err, advisor.ErrNoDatabase):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	return code, map[string]interface{}{"error": err.Error()}
}
