// Package server exposes ingestion and search over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

type Ingester interface {
	IngestFile(ctx context.Context, filename string, data []byte) (*ingest.Outcome, error)
}

type Searcher interface {
	Query(ctx context.Context, req rag.QueryRequest) (*models.PromptResponse, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	ingester Ingester
	searcher Searcher
	health   Pinger
}

// New wires routes and middleware. health may be nil.
func New(cfg config.ServerConfig, ingester Ingester, searcher Searcher, health Pinger) *Server {
	s := &Server{echo: echo.New(), cfg: cfg, ingester: ingester, searcher: searcher, health: health}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	// Multipart framing needs headroom above the file limit itself.
	api.POST("/documents", s.uploadDocument, middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes+1<<20, 10)))
	api.POST("/search", s.search)
	return s
}

// Handler exposes the router for tests and embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", s.cfg.Listen).Msg("HTTP server starting")
		errCh <- s.echo.Start(s.cfg.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("HTTP server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) healthz(c echo.Context) error {
	if s.health != nil {
		if err := s.health.Ping(c.Request().Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Str("path", c.Request().URL.Path).Msg("Request failed")
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"success": false, "error": msg})
	}
}
