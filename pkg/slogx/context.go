package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithDevice returns a context whose logger carries the device id, so every
// log line emitted while handling a command can be traced to its target.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("device_id", deviceID))
}
