// Package main is the entry point for the asteroid radar server.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/asteroid-radar/cmd/asteroid-radar/app"
	"github.com/stacklok/asteroid-radar/internal/config"
)

// logSettings is read from ASTEROID_RADAR_LOG_LEVEL and ASTEROID_RADAR_LOG_FORMAT.
// The unprefixed LOG_LEVEL is honoured when the prefixed one is unset.
type logSettings struct {
	level  slog.Level
	format string
}

func readLogSettings() logSettings {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	level := v.GetString("LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	return logSettings{
		level:  parseLogLevel(level),
		format: strings.ToLower(v.GetString("LOG_FORMAT")),
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Unknown log level, using info", "value", s)
		return slog.LevelInfo
	}
}

// newLogger writes JSON records unless the format is "text", and tags records
// logged under a span with its ids
func newLogger(w io.Writer, s logSettings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.level}
	var h slog.Handler
	if s.format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(traceHandler{Handler: h})
}

// traceHandler adds trace_id and span_id so log lines can be joined with traces
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	// stdout is reserved for command output (list, refresh, version --format json)
	slog.SetDefault(newLogger(os.Stderr, readLogSettings()))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
