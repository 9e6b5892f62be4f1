package main

import (
	"log/slog"
	"os"
)

// logLevel is bound to the root --log-level flag.
var logLevel string

// newLogger builds the CLI logger: a text handler on stderr at the level
// selected by --log-level, so stdout stays clean for reports.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
}

// parseLevel converts a level name to a slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
