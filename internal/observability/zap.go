package observability

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the Logger interface.
type ZapLogger struct {
	base *zap.Logger
}

// NewZapLogger wraps base. A nil base yields a no-op zap logger.
func NewZapLogger(base *zap.Logger) *ZapLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{base: base}
}

// NewProductionLogger builds a JSON zap logger, switching to the development
// encoder and debug level when development is set.
func NewProductionLogger(development bool) (*ZapLogger, error) {
	var (
		base *zap.Logger
		err  error
	)
	if development {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return NewZapLogger(base), nil
}

// Debug logs at debug level.
func (l *ZapLogger) Debug(msg string, fields ...Field) { l.base.Debug(msg, toZap(fields)...) }

// Info logs at info level.
func (l *ZapLogger) Info(msg string, fields ...Field) { l.base.Info(msg, toZap(fields)...) }

// Warn logs at warn level.
func (l *ZapLogger) Warn(msg string, fields ...Field) { l.base.Warn(msg, toZap(fields)...) }

// Error logs at error level.
func (l *ZapLogger) Error(msg string, fields ...Field) { l.base.Error(msg, toZap(fields)...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

func toZap(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
