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

	gitrepoapp "github.com/stacklok/gitrepo-server/internal/app"
	"github.com/stacklok/gitrepo-server/internal/config"
	"github.com/stacklok/gitrepo-server/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repository API server",
	Long: `Start the repository API server.

The server requires a configuration file (--config) that specifies:
- Storage locations for repositories, clone status records and lock files
- Clone, pagination and pull behavior
- Authentication (jwt or anonymous)
- Optional OpenTelemetry tracing and metrics`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	telemetryFlushTimeout  = 5 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	address := viper.GetString("address")
	configPath := viper.GetString("config")

	app, tel, err := buildApp(ctx, address, configPath)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(flushCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			_ = app.Stop(defaultGracefulTimeout)
			return err
		}
		return nil
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	return app.Stop(defaultGracefulTimeout)
}

// buildApp loads the configuration, initializes telemetry and wires the app.
// The caller owns the returned telemetry and must shut it down.
func buildApp(ctx context.Context, address, configPath string) (*gitrepoapp.GitRepoApp, *telemetry.Telemetry, error) {
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"base_path", cfg.Storage.BasePath,
		"auth_mode", cfg.Auth.Mode)

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	opts := []gitrepoapp.GitRepoAppOptions{
		gitrepoapp.WithConfig(cfg),
		gitrepoapp.WithAddress(address),
	}
	if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
		opts = append(opts,
			gitrepoapp.WithMeterProvider(tel.MeterProvider()),
			gitrepoapp.WithTracerProvider(tel.TracerProvider()),
			gitrepoapp.WithMetricsHandler(tel.MetricsHandler()),
		)
	}

	app, err := gitrepoapp.NewGitRepoApp(ctx, opts...)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
		return nil, nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, tel, nil
}
