// Package logging provides the application logger.
package logging

import (
	"log/slog"
	"os"
)

// Logger is a thin wrapper over slog so call sites can pass key/value pairs
// without importing slog everywhere.
type Logger struct {
	sl *slog.Logger
}

// NewLogger creates a text logger writing to stdout.
func NewLogger() *Logger {
	return &Logger{sl: slog.New(slog.NewTextHandler(os.Stdout, nil))}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.sl.Info(msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.sl.Warn(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.sl.Error(msg, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.sl.Debug(msg, args...)
}
