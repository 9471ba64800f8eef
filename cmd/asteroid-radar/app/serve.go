package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	internalapp "github.com/stacklok/asteroid-radar/internal/app"
	"github.com/stacklok/asteroid-radar/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the asteroid API server",
		Long: `Start the asteroid API server and the background refresh loop.

The server requires a configuration file (--config) that specifies:
- The NeoWs endpoint and API key
- The record store backend and path
- The refresh schedule, default filter and time zone

See examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	addConfigFlag(serveCmd)

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}

	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []internalapp.AsteroidAppOptions{
		internalapp.WithConfig(cfg),
		internalapp.WithAddress(address),
		internalapp.WithMeterProvider(tel.MeterProvider()),
		internalapp.WithTracerProvider(tel.TracerProvider()),
	}
	if h := tel.PrometheusHandler(); h != nil {
		opts = append(opts, internalapp.WithMetricsHandler(h))
	}

	asteroidApp, err := internalapp.NewAsteroidApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- asteroidApp.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		_ = asteroidApp.Stop(defaultGracefulTimeout)
		return err
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	}

	return asteroidApp.Stop(defaultGracefulTimeout)
}
