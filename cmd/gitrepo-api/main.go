// Package main is the entry point for the git repository API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stacklok/gitrepo-server/cmd/gitrepo-api/app"
	"github.com/stacklok/gitrepo-server/internal/config"
)

// getLogLevel parses the GITREPO_LOG_LEVEL environment variable and returns the corresponding slog.Level.
// Falls back to LOG_LEVEL.
// Defaults to slog.LevelInfo if neither is set or if the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

// zapLevel maps a slog level onto the zap level seen through logr.
// slog debug arrives as V(4) and warn as V(0), so warn cannot be filtered apart from info.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level <= slog.LevelDebug:
		return zapcore.Level(level)
	default:
		return zapcore.InfoLevel
	}
}

// newBaseHandler builds a JSON zap logger on stderr and exposes it as an slog.Handler.
// stderr keeps stdout clean for commands that output data (e.g., version --format json).
func newBaseHandler(level zap.AtomicLevel) (slog.Handler, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.Sampling = nil

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logr.ToSlogHandler(zapr.NewLogger(zapLogger)), nil
}

// traceHandler wraps an slog.Handler to automatically inject OpenTelemetry
// trace_id and span_id into every log record, enabling log-trace correlation.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	level := zap.NewAtomicLevelAt(zapLevel(getLogLevel()))
	baseHandler, err := newBaseHandler(level)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(&traceHandler{Handler: baseHandler}))

	rootCmd := app.NewRootCmd()
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") {
			level.SetLevel(zapLevel(slog.LevelDebug))
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
