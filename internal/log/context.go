package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const sessionNumberKey ctxKey = "session_number"

// ContextWithSessionNumber stores the beacon session number in the context so
// sender-goroutine log lines can be correlated back to the session they acted on.
func ContextWithSessionNumber(ctx context.Context, sessionNumber int32) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionNumberKey, sessionNumber)
}

// SessionNumberFromContext extracts the session number from context if present.
func SessionNumberFromContext(ctx context.Context) (int32, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(sessionNumberKey).(int32)
	return v, ok
}

// WithContext enriches the supplied logger with correlation fields from context.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	if sn, ok := SessionNumberFromContext(ctx); ok {
		return logger.With().Int32("session_number", sn).Logger()
	}
	return logger
}
