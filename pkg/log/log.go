// Package log configures the process-wide structured logger shared by the
// slidesmith binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process default logger writing text records to stderr
// at the given level.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: Level(logLevel),
	})))
}

// Level parses a level name (debug, info, warn, error), case-insensitively.
// Unknown names fall back to info.
func Level(name string) slog.Level {
	switch strings.ToLower(name) {
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

// WithModule returns the default logger tagged with a slidesmith module name
// (api, engine, jobs, ...), the attribute the log pipeline filters on.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
