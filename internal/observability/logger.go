// Package observability defines the logging primitives shared by pools, the
// manager and the command line.
package observability

import "sync/atomic"

// Logger is the leveled, structured sink pools and the manager write to.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one structured key/value attached to an entry.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for building a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type holder struct{ Logger }

var current atomic.Pointer[holder]

// SetLogger overrides the global logger. A nil logger restores the noop default.
func SetLogger(logger Logger) {
	if logger == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{logger})
}

// Log returns the process-wide logger; pools capture it at construction.
func Log() Logger {
	if h := current.Load(); h != nil {
		return h.Logger
	}
	return noopLogger{}
}

// Noop returns a logger that discards every entry.
func Noop() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}
