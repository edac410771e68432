// Package logger provides structured logging utilities.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/tenantgate/tenant-gate/internal/pkg/requestctx"
)

// Logger wraps slog.Logger with additional context.
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level and format.
func New(level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger enriched with the request ID, if present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := requestctx.GetRequestID(ctx); reqID != "" {
		return &Logger{
			Logger: l.With("request_id", reqID),
		}
	}
	return l
}

// WithSubject returns a logger with subject/tenant identity context.
func (l *Logger) WithSubject(subjectID, tenantID string) *Logger {
	return &Logger{
		Logger: l.With("subject_id", subjectID, "tenant_id", tenantID),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch level {
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

// Default returns the default logger.
func Default() *Logger {
	return New("info", "text")
}
