package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/advisor/config"
	"github.com/mohammad-safakhou/advisor/internal/advisor"
	"github.com/mohammad-safakhou/advisor/internal/telemetry"
)

// New builds the echo instance serving svc.
func New(cfg config.ServerConfig, svc Advisor) *echo.Echo {
	cfg = cfg.Normalize()
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.HTTPErrorHandler = errorHandler(log.New(log.Writer(), "[HTTP] ", log.LstdFlags))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	ah := &AgentHandler{Svc: svc, Timeout: cfg.RequestTimeout}
	ah.Register(api.Group("/agent"))
	qh := &QueryHandler{Svc: svc, Timeout: cfg.RequestTimeout}
	qh.Register(api.Group("/query"))
	th := &ToolsHandler{Svc: svc}
	th.Register(api.Group("/tools"))
	return e
}

// Run serves the advisor on addr (cfg.Server.Address when empty) until ctx
// is cancelled.
func Run(ctx context.Context, cfg *config.Config, addr, version string) error {
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(sctx)
	}()

	rt, err := advisor.Open(ctx, cfg, telemetry.NewMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return err
	}
	defer rt.Close()

	e := New(cfg.Server, rt.Service)
	if addr == "" {
		addr = cfg.Server.Normalize().Address
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(sctx)
	}()

	log.Printf("listening on %s", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
