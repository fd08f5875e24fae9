// Package api exposes the generation pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/planbot/internal/generate"
	"github.com/planbot/internal/tokenhealth"
)

// Poster posts a rendered plan back to the tracker.
type Poster interface {
	PostComment(ctx context.Context, key, text string) (string, bool, error)
}

// Generator runs one generation request.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Result, error)
}

// Server is the planbot API server.
type Server struct {
	echo    *echo.Echo
	addr    string
	service Generator
	poster  Poster
	health  *tokenhealth.Monitor
}

// NewServer creates the API server and wires its routes.
func NewServer(addr string, service Generator, poster Poster, health *tokenhealth.Monitor) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(requestID)

	server := &Server{
		echo:    e,
		addr:    addr,
		service: service,
		poster:  poster,
		health:  health,
	}

	server.setupRoutes()

	return server
}

// requestID tags every request with a UUID for log correlation.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := uuid.New().String()
		c.Set("request_id", id)
		c.Response().Header().Set("X-Request-ID", id)

		start := time.Now()
		err := next(c)
		log.Info().Str("request_id", id).Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).Int("status", c.Response().Status).
			Dur("took", time.Since(start)).Msg("handled request")
		return err
	}
}

// setupRoutes configures all API endpoints.
func (s *Server) setupRoutes() {
	v1 := s.echo.Group("/api/v1")

	v1.POST("/generate", s.generatePlan)
	v1.POST("/comment", s.postComment)
	v1.GET("/health", s.getHealth)
}

// Start begins serving and blocks until an interrupt, then shuts down
// gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
