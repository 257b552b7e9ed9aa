package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Lash-L/hubcore/internal/infrastructure/config"
)

// Logger wraps slog.Logger, stamping every record with the service name
// and version. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml: JSON or
// text format, level filtering, stdout or stderr output.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version stamped onto every record
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hubcore"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps a config string to a slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger with extra default attributes:
//
//	flowLogger := logger.With("component", "flow")
//	flowLogger.Info("flow started") // includes component=flow
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the early-startup logger used before config is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
