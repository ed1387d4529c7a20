// Package httpapi exposes the control surface as a small JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/control"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/slackapi"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	shutdownTimeout     = 5 * time.Second
)

// Controller is the control surface served over HTTP.
type Controller interface {
	Start(ctx context.Context, token string) error
	Stop(ctx context.Context) error
	Status() model.Status
	AddReaction(ctx context.Context, req control.ReactionRequest) (model.ReactionRecord, error)
	History(ctx context.Context, limit int) ([]model.ReactionRecord, error)
}

// Server routes HTTP requests to the controller.
type Server struct {
	echo *echo.Echo
	ctl  Controller
	log  *slog.Logger
}

type startRequest struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a Server with all routes registered.
func New(ctl Controller, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, ctl: ctl, log: log}

	e.Use(middleware.Recover())
	e.Use(s.logRequests)

	api := e.Group("/api")
	api.POST("/auto/start", s.handleStart)
	api.POST("/auto/stop", s.handleStop)
	api.GET("/auto/status", s.handleStatus)
	api.POST("/reactions", s.handleAddReaction)
	api.GET("/reactions", s.handleHistory)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http api listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Debug("http request",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"duration", time.Since(start),
		)
		return err
	}
}

func (s *Server) handleStart(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	if err := s.ctl.Start(c.Request().Context(), req.Token); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleStop(c echo.Context) error {
	if err := s.ctl.Stop(c.Request().Context()); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleAddReaction(c echo.Context) error {
	var req control.ReactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	rec, err := s.ctl.AddReaction(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHistory(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := s.ctl.History(c.Request().Context(), limit)
	if err != nil {
		return s.writeError(c, err)
	}
	if recs == nil {
		recs = []model.ReactionRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

// writeError maps controller errors onto status codes:
// 400 for bad input, 401 for rejected tokens, 502 for Slack failures.
func (s *Server) writeError(c echo.Context, err error) error {
	var (
		vErr    *control.ValidationError
		authErr *slackapi.AuthError
		apiErr  *slackapi.APIError
		netErr  *slackapi.NetworkError
	)
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: vErr.Error()})
	case errors.As(err, &authErr):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
	case errors.As(err, &apiErr):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: apiErr.Error()})
	case errors.As(err, &netErr):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: netErr.Error()})
	default:
		s.log.Error("http handler", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
