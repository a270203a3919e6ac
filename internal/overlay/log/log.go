// Package log provides the overlay core's logging shim.
//
// It wraps log/slog and re-fetches slog.Default() on every call so tests
// can swap the default logger without threading one through every
// constructor.
package log

import "log/slog"

// LazyLogger defers to slog.Default() at call time.
type LazyLogger struct {
	component string
}

// Logger returns a lazy logger scoped to component.
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) Debug(msg string, args ...any) {
	slog.Default().With("component", l.component).Debug(msg, args...)
}

func (l *LazyLogger) Info(msg string, args ...any) {
	slog.Default().With("component", l.component).Info(msg, args...)
}

func (l *LazyLogger) Warn(msg string, args ...any) {
	slog.Default().With("component", l.component).Warn(msg, args...)
}

func (l *LazyLogger) Error(msg string, args ...any) {
	slog.Default().With("component", l.component).Error(msg, args...)
}
