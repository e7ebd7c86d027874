// Package app provides application lifecycle management for the repository server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/gitrepo-server/internal/config"
)

// GitRepoApp encapsulates all components needed to run the repository API server
// It provides lifecycle management and graceful shutdown capabilities
type GitRepoApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the clone orchestrator in the background and then the HTTP server.
// This method blocks until the HTTP server stops or encounters an error
func (app *GitRepoApp) Start() error {
	go func() {
		if err := app.components.CloneOrchestrator.Start(app.ctx); err != nil {
			slog.Error("Clone orchestrator failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// Running clones are cancelled and recorded as failed before the HTTP server shuts down.
func (app *GitRepoApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server")

	if err := app.components.CloneOrchestrator.Stop(); err != nil {
		slog.Error("Failed to stop clone orchestrator", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *GitRepoApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *GitRepoApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
