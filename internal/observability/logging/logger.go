package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// maxValueRunes caps string attributes. Queries and paragraph text can be
// arbitrarily long and are only useful in logs as a prefix.
const maxValueRunes = 300

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes to w. The MCP server logs to stderr because stdout
// carries the protocol.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: truncateLongValues,
	})
	return slog.New(handler).With("service", service)
}

func truncateLongValues(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if utf8.RuneCountInString(s) <= maxValueRunes {
		return a
	}
	return slog.String(a.Key, string([]rune(s)[:maxValueRunes])+"...")
}

// ParseLevel maps LOG_LEVEL values; anything unknown is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
