package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/askgraph/internal/audit"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

// Runner is the part of the compiler the API needs.
type Runner interface {
	RunDetailed(ctx context.Context, question string) (compiler.Result, error)
	Tasks(ctx context.Context, question string) (compiler.Graph, error)
}

// AuditReader looks up recorded runs.
type AuditReader interface {
	Get(ctx context.Context, runID string) (audit.Entry, bool, error)
}

// ProgressChannels names the pub/sub channel progress for a run is sent on.
type ProgressChannels interface {
	Channel(runID string) string
}

// Options configures the HTTP API.
type Options struct {
	Runner Runner
	// Audits enables GET /api/runs/:id when set.
	Audits AuditReader
	// JWTSecret protects /api with bearer tokens when non-empty.
	JWTSecret []byte
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Progress adds the run's progress channel to /api/ask responses.
	Progress ProgressChannels
	Logger   *log.Logger
}

// Server exposes the compiler over HTTP.
type Server struct {
	e        *echo.Echo
	runner   Runner
	audits   AuditReader
	progress ProgressChannels
	logger   *log.Logger
}

// New builds the echo instance and registers routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization, HeaderRunID},
		ExposeHeaders: []string{HeaderRunID},
	}))

	s := &Server{e: e, runner: opts.Runner, audits: opts.Audits, progress: opts.Progress, logger: logger}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	if len(opts.JWTSecret) > 0 {
		api.Use(EchoAuthMiddleware(opts.JWTSecret))
	}
	api.POST("/ask", s.ask)
	api.POST("/plan", s.plan)
	if s.audits != nil {
		api.GET("/runs/:id", s.run)
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
