package trace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	StartKey     ContextKey = "start"
)

// DefaultHeader carries the request id on requests and responses.
const DefaultHeader = "X-Request-ID"

// NewRequestID generates a random request id.
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WithStart records when the transaction entered the proxy.
// An existing start time is kept so the earliest handler wins.
func WithStart(ctx context.Context, t time.Time) context.Context {
	if _, ok := ctx.Value(StartKey).(time.Time); ok {
		return ctx
	}
	return context.WithValue(ctx, StartKey, t)
}

// Elapsed returns the time since WithStart, or zero when no start was recorded.
func Elapsed(ctx context.Context) time.Duration {
	if ctx == nil {
		return 0
	}
	start, ok := ctx.Value(StartKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
