package logger

import (
	"context"
	"sync/atomic"
)

type holder struct{ Logger }

var global atomic.Pointer[holder]

func init() {
	global.Store(&holder{New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"})})
}

// Global returns the process-wide logger.
func Global() Logger { return global.Load().Logger }

// SetGlobal replaces the process-wide logger. nil is ignored.
func SetGlobal(l Logger) {
	if l != nil {
		global.Store(&holder{l})
	}
}

// SetLevel sets the level of the global logger.
func SetLevel(level Level) { Global().SetLevel(level) }

func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }

type loggerKey struct{}

// WithContext returns a context carrying the logger.
func (l *SlogLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, Logger(l))
}

// FromContext extracts a Logger from ctx, falling back to the global logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
			return l
		}
	}
	return Global()
}
