// Package logging wraps log/slog with the field names used across imgcluster.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with imgcluster-specific helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at Info level is used.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that writes JSON records to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards all output.
func NoopLogger() *Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// FromFlags builds the logger selected by the CLI flags.
// format is "text" or "json"; anything else falls back to text.
func FromFlags(w io.Writer, format string, verbose bool) *Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if strings.EqualFold(format, "json") {
		return NewJSONLogger(w, level)
	}
	return NewTextLogger(w, level)
}

// WithRun tags every record with the batch run id.
func (l *Logger) WithRun(id string) *Logger {
	return &Logger{Logger: l.Logger.With("run", id)}
}

// WithPath tags every record with an image path.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// WithStage tags every record with the pipeline stage name.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{Logger: l.Logger.With("stage", stage)}
}

// LogSkip records an image dropped from the batch.
func (l *Logger) LogSkip(ctx context.Context, path string, err error) {
	l.WarnContext(ctx, "skipping image",
		"path", path,
		"error", err,
	)
}

// LogBatch summarises the extraction stage.
func (l *Logger) LogBatch(ctx context.Context, total, accepted int) {
	if skipped := total - accepted; skipped > 0 {
		l.WarnContext(ctx, "feature extraction completed with skips",
			"total", total,
			"accepted", accepted,
			"skipped", skipped,
		)
		return
	}
	l.InfoContext(ctx, "feature extraction completed",
		"count", accepted,
	)
}
