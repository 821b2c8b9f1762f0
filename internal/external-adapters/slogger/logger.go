// Package slogger adapts log/slog to the domain Logger interface.
package slogger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// Logger implements interfaces.Logger on top of a slog.Logger
type Logger struct {
	l *slog.Logger
}

// New creates a logger writing to w. format is "json" or "text"; level is
// one of debug, info, warn, error.
func New(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{l: slog.New(handler)}
}

// ParseLevel parses log level string
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

// Debug logs at debug level
func (s *Logger) Debug(msg string, fields ...interfaces.Field) { s.l.Debug(msg, attrs(fields)...) }

// Info logs at info level
func (s *Logger) Info(msg string, fields ...interfaces.Field) { s.l.Info(msg, attrs(fields)...) }

// Warn logs at warn level
func (s *Logger) Warn(msg string, fields ...interfaces.Field) { s.l.Warn(msg, attrs(fields)...) }

// Error logs at error level
func (s *Logger) Error(msg string, fields ...interfaces.Field) { s.l.Error(msg, attrs(fields)...) }

// With returns a child logger carrying fields on every entry
func (s *Logger) With(fields ...interfaces.Field) interfaces.Logger {
	return &Logger{l: s.l.With(attrs(fields)...)}
}

func attrs(fields []interfaces.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && err != nil {
			out = append(out, slog.String(f.Key, err.Error()))
			continue
		}
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
