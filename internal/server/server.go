// Package server exposes the user registry and watcher status over http.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/easyslot/easyslot/internal/metrics"
	"github.com/easyslot/easyslot/internal/state"
	"github.com/easyslot/easyslot/internal/users"
)

type Server struct {
	echo   *echo.Echo
	addr   string
	store  *users.Store
	states *state.Manager
}

func New(addr string, store *users.Store, states *state.Manager, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		addr:   addr,
		store:  store,
		states: states,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/users", s.handleListUsers)
	api.GET("/users/:email", s.handleGetUser)
	api.POST("/users", s.handleAddUser)
	api.PUT("/users/:email", s.handleUpdateUser)
	api.DELETE("/users/:email", s.handleDeleteUser)

	return s
}

func (s *Server) Start() error {
	slog.Info("starting http server", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the persisted monitoring state of all accounts.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.states.All())
}

func (s *Server) handleListUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.All())
}

func (s *Server) handleGetUser(c echo.Context) error {
	u, err := s.store.Get(c.Param("email"))
	if err != nil {
		return userError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleAddUser(c echo.Context) error {
	var u users.User
	if err := c.Bind(&u); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid user payload"))
	}
	if err := s.store.Add(u); err != nil {
		return userError(c, err)
	}
	return c.JSON(http.StatusOK, successBody("User added successfully"))
}

func (s *Server) handleUpdateUser(c echo.Context) error {
	var u users.User
	if err := c.Bind(&u); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid user payload"))
	}
	if err := s.store.Update(c.Param("email"), u); err != nil {
		return userError(c, err)
	}
	return c.JSON(http.StatusOK, successBody("User updated successfully"))
}

func (s *Server) handleDeleteUser(c echo.Context) error {
	if err := s.store.Delete(c.Param("email")); err != nil {
		return userError(c, err)
	}
	return c.JSON(http.StatusOK, successBody("User deleted successfully"))
}

func userError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, users.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, users.ErrExists):
		return c.JSON(http.StatusConflict, errorBody(err.Error()))
	default:
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
}

func successBody(message string) map[string]any {
	return map[string]any{"status": "success", "message": message}
}

func errorBody(message string) map[string]any {
	return map[string]any{"status": "error", "message": message}
}
