// Package log implements context-based logging on top of log/slog. All
// logging in this module goes through these functions, both for ergonomics
// and for AddTags, which stashes a key in the context that is then
// propagated to all descendant logging calls - useful for tagging every log
// line touched by one compute node or one recovery pass with a shared
// identifier.
//
// There are "f" and "w" variants of each level. The "f" variant takes a
// format string and args; the "w" variant takes an even-length list of
// key-value pairs.
//
// Logger is the injectable form: storage.WithLogger and compute.WithLogger
// take one so a caller can redirect a component's log lines without
// touching the process-wide slog.Default(). The package-level functions
// below (Infof, Errorf, ...) are a convenience bound to Default().
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

type contextKey int

const (
	logTagKey contextKey = iota
)

// AddTags adds key-value pairs to the log context.
func AddTags(ctx context.Context, kvs ...any) context.Context {
	if len(kvs)%2 != 0 {
		panic("log: AddTags requires an even number of arguments")
	}
	value := ctx.Value(logTagKey)
	tags := []any{}
	if value != nil {
		tagsValue, ok := value.([]any)
		if !ok {
			panic("log: invalid log tags value")
		}
		tags = append(tags, tagsValue...)
	}
	return context.WithValue(
		ctx,
		logTagKey,
		append(tags, kvs...),
	)
}

func fromContext(ctx context.Context) []any {
	tags, _ := ctx.Value(logTagKey).([]any)
	return tags
}

// Logger binds the tag-scoped helpers below to a specific slog.Handler
// instead of the process-wide slog.Default(). Construct one with New and
// pass it to storage.WithLogger or compute.WithLogger; a component that
// receives none falls back to Default().
type Logger struct {
	handler slog.Handler
}

// New wraps an existing *slog.Logger.
func New(inner *slog.Logger) *Logger {
	return &Logger{handler: inner.Handler()}
}

var defaultLogger = New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

// Default returns the package-level logger used when a component is given
// no Logger: stderr, info level and above.
func Default() *Logger {
	return defaultLogger
}

func (l *Logger) levelf(ctx context.Context, level slog.Level, format string, args ...any) {
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	tags := fromContext(ctx)
	for i := 0; i < len(tags); i += 2 {
		key, ok := tags[i].(string)
		if !ok {
			panic("log: invalid log tag key")
		}
		r.Add(key, tags[i+1])
	}
	if l.handler.Enabled(ctx, level) {
		if err := l.handler.Handle(ctx, r); err != nil {
			slog.ErrorContext(ctx, "error handling log record", "error", err)
		}
	}
}

// Infof logs a message with some additional context.
func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.levelf(ctx, slog.LevelInfo, format, args...)
}

// Errorf logs an error message with some additional context.
func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	l.levelf(ctx, slog.LevelError, format, args...)
}

// Debugf logs a debug message with some additional context.
func (l *Logger) Debugf(ctx context.Context, format string, args ...any) {
	l.levelf(ctx, slog.LevelDebug, format, args...)
}

// Warnf logs a warning message with some additional context.
func (l *Logger) Warnf(ctx context.Context, format string, args ...any) {
	l.levelf(ctx, slog.LevelWarn, format, args...)
}

func (l *Logger) levelw(ctx context.Context, level slog.Level, msg string, keyvals ...any) {
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			panic("log: invalid log key")
		}
		r.Add(key, keyvals[i+1])
	}
	tags := fromContext(ctx)
	for i := 0; i < len(tags); i += 2 {
		key, ok := tags[i].(string)
		if !ok {
			panic("log: invalid log tag key")
		}
		r.Add(key, tags[i+1])
	}
	if l.handler.Enabled(ctx, level) {
		if err := l.handler.Handle(ctx, r); err != nil {
			slog.ErrorContext(ctx, "error handling log record", "error", err)
		}
	}
}

// Infow logs a message with some additional key-value context.
func (l *Logger) Infow(ctx context.Context, msg string, keyvals ...any) {
	l.levelw(ctx, slog.LevelInfo, msg, keyvals...)
}

// Errorw logs an error message with some additional key-value context.
func (l *Logger) Errorw(ctx context.Context, msg string, keyvals ...any) {
	l.levelw(ctx, slog.LevelError, msg, keyvals...)
}

// Debugw logs a debug message with some additional key-value context.
func (l *Logger) Debugw(ctx context.Context, msg string, keyvals ...any) {
	l.levelw(ctx, slog.LevelDebug, msg, keyvals...)
}

// Warnw logs a warning message with some additional key-value context.
func (l *Logger) Warnw(ctx context.Context, msg string, keyvals ...any) {
	l.levelw(ctx, slog.LevelWarn, msg, keyvals...)
}

// Infof logs a message with some additional context, via Default().
func Infof(ctx context.Context, format string, args ...any) {
	defaultLogger.Infof(ctx, format, args...)
}

// Errorf logs an error message with some additional context, via Default().
func Errorf(ctx context.Context, format string, args ...any) {
	defaultLogger.Errorf(ctx, format, args...)
}

// Debugf logs a debug message with some additional context, via Default().
func Debugf(ctx context.Context, format string, args ...any) {
	defaultLogger.Debugf(ctx, format, args...)
}

// Warnf logs a warning message with some additional context, via Default().
func Warnf(ctx context.Context, format string, args ...any) {
	defaultLogger.Warnf(ctx, format, args...)
}

// Infow logs a message with some additional key-value context, via
// Default().
func Infow(ctx context.Context, msg string, keyvals ...any) {
	defaultLogger.Infow(ctx, msg, keyvals...)
}

// Errorw logs an error message with some additional key-value context, via
// Default().
func Errorw(ctx context.Context, msg string, keyvals ...any) {
	defaultLogger.Errorw(ctx, msg, keyvals...)
}

// Debugw logs a debug message with some additional key-value context, via
// Default().
func Debugw(ctx context.Context, msg string, keyvals ...any) {
	defaultLogger.Debugw(ctx, msg, keyvals...)
}

// Warnw logs a warning message with some additional key-value context, via
// Default().
func Warnw(ctx context.Context, msg string, keyvals ...any) {
	defaultLogger.Warnw(ctx, msg, keyvals...)
}
