// Package server exposes the HTTP API: session lifecycle, document
// upload, and streaming question answering.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/synapse-rag/synapse/internal/ingest"
	"github.com/synapse-rag/synapse/internal/rag"
	"github.com/synapse-rag/synapse/internal/session"
	"github.com/synapse-rag/synapse/internal/store"
)

// Server wires the HTTP handlers to the application services.
type Server struct {
	echo     *echo.Echo
	registry *session.Registry
	meta     store.MetadataStore
	ingestor *ingest.Service
	chain    *rag.Chain
}

// New builds the server and registers all routes.
func New(registry *session.Registry, meta store.MetadataStore, ingestor *ingest.Service, chain *rag.Chain) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http_request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency))
			return nil
		},
	}))

	s := &Server{
		echo:     e,
		registry: registry,
		meta:     meta,
		ingestor: ingestor,
		chain:    chain,
	}

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.deleteSession)
	api.GET("/sessions/:id/messages", s.listMessages)
	api.POST("/sessions/:id/documents", s.uploadDocuments)
	api.DELETE("/sessions/:id/documents", s.deleteDocument)
	api.POST("/sessions/:id/query", s.query)

	return s
}

// Router exposes the echo instance for tests.
func (s *Server) Router() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
