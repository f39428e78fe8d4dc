package logger

import "context"

type ctxLogKey struct{}

// ContextWithLog attaches l to ctx; handlers further down read it with LogFromContext
func ContextWithLog(ctx context.Context, l *Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogKey{}, l)
}

// ContextWith extends the logger carried by ctx with fields
func ContextWith(ctx context.Context, fields ...Field) context.Context {
	return ContextWithLog(ctx, LogFromContext(ctx).With(fields...))
}

// LogFromContext the logger of ctx, the default logger when none was attached
func LogFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxLogKey{}).(*Logger); ok {
		return l
	}
	return defaultLogger
}
