// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/container"
	"github.com/AtRiskMedia/kendr-go/internal/presentation/http/routes"
	"github.com/AtRiskMedia/kendr-go/pkg/config"
)

// Server wraps the HTTP server with configuration and dependency injection
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New creates a new HTTP server instance with dependency injection
func New(port string, container *container.Container) *Server {
	heartbeat := time.Duration(config.SSEHeartbeatIntervalSeconds) * time.Second
	router := routes.SetupRoutes(container, heartbeat)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		container:  container,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.container.Logger.System().Info("Starting HTTP server", "address", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop closes editor sessions, flushing their pending edits, then shuts the
// HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	logger := s.container.Logger.Shutdown()
	logger.Info("Closing editor sessions...", "sessions", s.container.EditorManager.Count())
	if err := s.container.EditorManager.CloseAll(ctx); err != nil {
		logger.Error("Some editor sessions failed their final save", "error", err.Error())
	}
	logger.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
