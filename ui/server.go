package ui

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"entitlements/adapters/relational"
	"entitlements/internal"

	"github.com/gin-gonic/gin"
)

// Options configures what the server publishes
type Options struct {
	// DocumentPath is the JSON document produced by the pipeline
	DocumentPath string
	// Database locates the relational output for /api/database/metadata. Optional.
	Database *relational.Config
	// DashboardDir holds the static dashboard. Skipped when it does not exist.
	DashboardDir string
}

// Server serves the generated document and the static dashboard that reads it
type Server struct {
	router  *gin.Engine
	options Options
	logger  *internal.Logger
}

// NewServer creates a new web server instance
func NewServer(options Options, logger *internal.Logger) *Server {
	s := &Server{
		router:  gin.New(),
		options: options,
		logger:  internal.OrDefault(logger).With("Server"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)

	// The dashboard fetches ../data/<document> relative to its own pages
	s.router.GET("/data/"+filepath.Base(s.options.DocumentPath), s.handleDocument)

	api := s.router.Group("/api")
	api.GET("/metadata", s.handleMetadata)
	api.GET("/database/metadata", s.handleDatabaseMetadata)

	if s.hasDashboard() {
		s.logger.Info("Serving dashboard from %s at /dashboard", s.options.DashboardDir)
		s.router.Static("/dashboard", s.options.DashboardDir)
	} else {
		s.logger.Warn("Dashboard directory %s not found, serving data endpoints only", s.options.DashboardDir)
	}
}

func (s *Server) hasDashboard() bool {
	if s.options.DashboardDir == "" {
		return false
	}
	info, err := os.Stat(s.options.DashboardDir)
	return err == nil && info.IsDir()
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting dashboard server on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down dashboard server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
