package graphd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with graphd-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithSource adds a source field (linkage-guid) to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// WithCursorLen adds the rendered cursor length to the logger.
func (l *Logger) WithCursorLen(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("cursor_len", n),
	}
}

// WithDir adds a directory field to the logger.
func (l *Logger) WithDir(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dir", dir),
	}
}

// WithSnapshot adds a snapshot name field to the logger.
func (l *Logger) WithSnapshot(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("snapshot", name),
	}
}

// LogThaw logs a cursor thaw.
func (l *Logger) LogThaw(ctx context.Context, cursorLen int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "thaw failed",
			"cursor_len", cursorLen,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "thaw completed",
			"cursor_len", cursorLen,
		)
	}
}

// LogFreeze logs a cursor freeze.
func (l *Logger) LogFreeze(ctx context.Context, it string, cursorLen int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "freeze failed",
			"iterator", it,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "freeze completed",
			"iterator", it,
			"cursor_len", cursorLen,
		)
	}
}

// LogFlush logs a store flush to disk.
func (l *Logger) LogFlush(ctx context.Context, dir string, sources int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "flush completed",
			"dir", dir,
			"sources", sources,
		)
	}
}

// LogLoad logs a store directory load.
func (l *Logger) LogLoad(ctx context.Context, dir string, sources int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"dir", dir,
			"sources", sources,
		)
	}
}

// LogSnapshot logs a snapshot upload.
func (l *Logger) LogSnapshot(ctx context.Context, name string, files int, bytes int64, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"snapshot", name,
			"files", files,
			"bytes", bytes,
			"took", took,
		)
	}
}

// LogRestore logs a snapshot restore.
func (l *Logger) LogRestore(ctx context.Context, name string, files int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"snapshot", name,
			"files", files,
			"took", took,
		)
	}
}
