// Package infrastructure provides the agent-wide structured logger.
//
// The agent has exactly one diagnostic surface: the process error stream.
// Everything else (exit code, health channel fields) is machine-facing, so
// the logger always writes JSON records to stderr and never to a file a
// supervisor would have to rotate.
package infrastructure

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once
)

// InitializeLogger creates and installs the global slog logger. It is safe
// to call more than once; only the first call configures the logger.
func InitializeLogger(level string) *slog.Logger {
	globalLoggerOnce.Do(func() {
		globalLogger = createLogger(os.Stderr, level)
		slog.SetDefault(globalLogger)
	})
	return globalLogger
}

// GetLogger returns the global logger instance, falling back to the slog
// default when InitializeLogger has not run yet.
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

func createLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// parseLogLevel maps a config level string to a slog level. Unknown values
// fall back to info rather than failing: a bad log level must never stop
// the enforcement loop. The "none" level suppresses everything below panic
// severity by parking the threshold far above error.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return slog.Level(128)
	default:
		return slog.LevelInfo
	}
}
