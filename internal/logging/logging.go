// Package logging configures the process-wide slog logger from environment
// settings.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the logger, installs it as the slog default and returns it.
// Level accepts debug, info, warn or error (case-insensitive; unknown values
// mean info). Format "json" selects the JSON handler; anything else logs
// text.
func Setup(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
