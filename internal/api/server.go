// Package api hosts the HTTP server: the Echo instance, its middleware, the
// versioned API controller, and the Prometheus metrics endpoint.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v2 "github.com/tphakala/brandforge-go/internal/api/v2"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/datastore"
	"github.com/tphakala/brandforge-go/internal/logging"
	"github.com/tphakala/brandforge-go/internal/observability"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
)

// Server is the main HTTP server. It manages the Echo instance, middleware
// and routes.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	logger   *slog.Logger

	dataStore    datastore.Interface
	orchestrator *orchestrator.Service
	metrics      *observability.Metrics

	apiController *v2.Controller
}

// NewServer wires the HTTP surface together. The server does not own its
// dependencies; closing the datastore remains the caller's job.
func NewServer(settings *conf.Settings, ds datastore.Interface,
	svc *orchestrator.Service, metrics *observability.Metrics) *Server {

	logger := logging.ForService("httpserver")
	if logger == nil {
		logger = slog.Default().With("service", "httpserver")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Gzip())
	if settings.WebServer.Debug {
		e.Use(echomw.Logger())
	}

	s := &Server{
		echo:         e,
		settings:     settings,
		logger:       logger,
		dataStore:    ds,
		orchestrator: svc,
		metrics:      metrics,
	}

	s.apiController = v2.New(e, ds, svc, settings, metrics)

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}

	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the HTTP server until the context is canceled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", s.settings.WebServer.Port)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", addr)
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return s.echo.Shutdown(shutdownCtx)
	}
}
