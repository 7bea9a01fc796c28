// backend/pkg/logger/logger.go
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a text logger writing to stderr, tagged with the component name.
func New(component, level string) *slog.Logger {
	return NewWithWriter(os.Stderr, component, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, component, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	l := slog.New(handler)
	if component != "" {
		l = l.With("component", component)
	}
	return l
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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
