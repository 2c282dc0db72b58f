// Package applog provides the server's structured logger.
//
// No logging library appears anywhere in the dependency pack this module
// was grounded on; applog wraps the standard library's log/slog directly
// and is the one ambient-stack concern this module does not source from
// a third-party dependency (see DESIGN.md).
package applog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps a *slog.Logger together with any fields attached through
// With or WithComponent, which every later line from it carries.
type Logger struct {
	slog *slog.Logger
}

// Option configures a Logger at construction, matching this module's
// functional-option idiom (buffer.Option, cursor collection construction,
// history.New).
type Option func(*config)

type config struct {
	level  slog.Level
	output io.Writer
	source bool
}

// WithLevel sets the minimum level logged.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithOutput redirects log output (default os.Stderr).
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

// WithSource annotates each record with its call site.
func WithSource() Option {
	return func(c *config) { c.source = true }
}

// New constructs a Logger writing structured (JSON) records.
func New(opts ...Option) *Logger {
	c := config{level: slog.LevelInfo, output: os.Stderr}
	for _, opt := range opts {
		opt(&c)
	}
	h := slog.NewJSONHandler(c.output, &slog.HandlerOptions{
		Level:     c.level,
		AddSource: c.source,
	})
	return &Logger{slog: slog.New(h)}
}

// With returns a Logger with additional fields attached to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithComponent is shorthand for With("component", name), the field every
// subsystem (loop, process, buffer collection, config watcher) tags its
// logger with.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// Log emits at an explicit level, for call sites that compute the level
// dynamically (e.g. the error taxonomy in spec.md §7: transient I/O logs
// at Info, invariant violations at Error before the abort).
func (l *Logger) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.slog.Log(ctx, level, msg, args...)
}
