package logging

import (
	"go.uber.org/zap"
)

// Logger provides structured key-value logging for all edgegate components.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a named logger writing JSON to stderr.
func NewLogger(name string) *Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{sugar: zl.Sugar().Named(name)}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Info logs an informational message with key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries. Call before process exit.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
