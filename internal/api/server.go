package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bakkerme/atomsplit/internal/core"
	"github.com/bakkerme/atomsplit/internal/storage"
)

// RunStore is the read side of the run history.
type RunStore interface {
	GetRun(id string) (*core.Run, error)
	ListRuns(limit int) ([]*core.Run, error)
	LatestRun() (*core.Run, error)
}

// Runner starts a run on demand.
type Runner interface {
	RunOnce(ctx context.Context) (*core.Run, error)
}

// Server exposes the run history over HTTP.
type Server struct {
	logger *slog.Logger
	store  RunStore
	runner Runner
	echo   *echo.Echo
}

func NewServer(logger *slog.Logger, store RunStore, runner Runner) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	server := &Server{
		logger: logger,
		store:  store,
		runner: runner,
		echo:   e,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	api := s.echo.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	runs := api.Group("/runs")
	runs.GET("", s.handleListRuns)
	runs.GET("/latest", s.handleLatestRun)
	runs.GET("/:id", s.handleGetRun)
	runs.POST("", s.handleStartRun)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("api listening", "addr", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "atomsplit",
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleLatestRun(c echo.Context) error {
	run, err := s.store.LatestRun()
	return s.respondRun(c, run, err)
}

func (s *Server) handleGetRun(c echo.Context) error {
	run, err := s.store.GetRun(c.Param("id"))
	return s.respondRun(c, run, err)
}

// A failed run is still returned, with 502 since a feed upstream failed.
func (s *Server) handleStartRun(c echo.Context) error {
	if s.runner == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "runs cannot be started from the api")
	}
	run, err := s.runner.RunOnce(c.Request().Context())
	if err != nil {
		s.logger.Warn("api run failed", "error", err)
		if run == nil {
			return s.internalError(c, err)
		}
		return c.JSON(http.StatusBadGateway, run)
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) respondRun(c echo.Context, run *core.Run, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) internalError(c echo.Context, err error) error {
	s.logger.Error("api request failed", "path", c.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
