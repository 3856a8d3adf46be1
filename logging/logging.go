package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logger *slog.Logger

func init() {
	InitLogger("info")
}

// InitLogger initializes the global text logger on stderr with the specified level
func InitLogger(level string) {
	InitLoggerTo(os.Stderr, level, "text")
}

// InitLoggerTo initializes the global logger writing to w. Format is "text" or "json".
func InitLoggerTo(w io.Writer, level string, format string) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// ParseLevel maps a level name to a slog level, defaulting to INFO
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// GetLogger returns the global logger instance
func GetLogger() *slog.Logger {
	return logger
}
