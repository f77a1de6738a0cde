package loggy

import "context"

type contextKey struct{}

// IntoContext returns a new context carrying the given logger
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in the context, or nil if none is set
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return nil
}

// WithContext returns the context logger if present, otherwise the global logger
func WithContext(ctx context.Context) *Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	return globalLogger
}
