// Package logging provides structured logging for relaycheck.
//
// Structured events (spawns, verdicts, watchdog fires) go through slog.
// Scenario pass/fail lines and mirrored relay output are plain stdout and
// deliberately bypass this package.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a logger writing to stderr.
// Format is "json" or "text"; verbose forces debug level.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	logLevel := parseLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}
	return newLogger(os.Stderr, format, logLevel)
}

// NewLoggerWithWriter creates a logger writing to w. Used in tests and when
// log output must not interleave with mirrored scenario output.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	return newLogger(w, format, parseLevel(level))
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		// Human operators watch suite runs live; text is the default.
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string level to slog.Level, defaulting to info.
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

// SetDefault installs the logger as the slog package default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
