// Package app provides application lifecycle management for the asteroid radar server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/asteroid-radar/internal/config"
)

// AsteroidApp encapsulates all components needed to run the asteroid API server
// It provides lifecycle management and graceful shutdown capabilities
type AsteroidApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the HTTP server and the background refresh loop.
// It blocks until both have stopped and returns the first failure.
func (app *AsteroidApp) Start() error {
	g, gctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		if err := app.components.SyncCoordinator.Start(gctx); err != nil {
			slog.Error("Refresh coordinator failed", "error", err)
			return fmt.Errorf("refresh coordinator failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout
// It stops the refresh coordinator, then shuts down the HTTP server and releases storage
func (app *AsteroidApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	// Stop the coordinator first so no refresh writes to a closing store
	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop refresh coordinator", "error", err)
	}

	// Graceful HTTP server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := app.httpServer.Shutdown(shutdownCtx)

	// Cancel the application context and close the storage
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *AsteroidApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *AsteroidApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the engine, coordinator and state service of the app
func (app *AsteroidApp) GetComponents() *AppComponents {
	return app.components
}
