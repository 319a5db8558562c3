// Package logging provides structured logging configuration using log/slog.
//
// Logs go to stderr so query output on stdout stays clean, or to a rotated
// file when one is configured. Loggers taken from a context carry the chi
// request ID and the current import ID when present.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // rotated log file; empty means stderr

	MaxSizeMB int
}

// Setup configures the global slog logger and returns the level variable so
// callers (the -v / -q flags) can adjust verbosity afterwards.
func Setup(opts Options) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	var w io.Writer = os.Stderr
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: 3,
			Compress:   true,
		}
	}

	slog.SetDefault(slog.New(NewHandler(w, opts.Format, level)))
	return level
}

// NewHandler builds a text or json handler writing to w.
func NewHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Step moves the level by n notches (positive is more verbose), clamped to
// the debug..error range.
func Step(level *slog.LevelVar, n int) {
	l := level.Level() - slog.Level(4*n)
	if l < slog.LevelDebug {
		l = slog.LevelDebug
	}
	if l > slog.LevelError {
		l = slog.LevelError
	}
	level.Set(l)
}

type importIDKey struct{}

// WithImportID returns a context whose loggers carry the given import ID.
func WithImportID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, importIDKey{}, id)
}

// ImportID returns the import ID stored by WithImportID, if any.
func ImportID(ctx context.Context) string {
	id, _ := ctx.Value(importIDKey{}).(string)
	return id
}

// FromContext returns a logger enriched with request and import context.
//
// Usage:
//
//	func handleImport(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("import accepted", "table", table)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id := ImportID(ctx); id != "" {
		logger = logger.With("import_id", id)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// LevelForStatus picks the log level for an HTTP response status.
func LevelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
