// Package logging provides structured logging for demo-loop-driver.
//
// Log records go to the driver's stderr. Stdout is reserved for the driver's console
// transcript (echoed input, results and fatal lines).
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// NewLogger creates a logger writing to w with the specified format and level.
// Format should be "json" or "text"; verbose forces debug with source locations.
func NewLogger(w io.Writer, format, level string, verbose bool) *slog.Logger {
	logLevel := parseLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: verbose,
	}

	return slog.New(newHandler(w, format, opts))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// parseLevel converts a string level to slog.Level.
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

// NewRunID returns a fresh identifier used to correlate log lines and
// metrics of one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRun attaches the run identity to every record of logger.
func WithRun(logger *slog.Logger, runID, runName string) *slog.Logger {
	return logger.With("run_id", runID, "run_name", runName)
}

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
