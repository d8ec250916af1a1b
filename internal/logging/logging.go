package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn" or "error" (case-insensitive) to a
// slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Setup creates a stderr logger, installs it as the default, and returns it.
func Setup(level string) *slog.Logger {
	logger := New(os.Stderr, level).With("service", "tempo")
	slog.SetDefault(logger)
	return logger
}

// Component scopes a logger to one part of the system.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
