// Package trace carries the request id that ties together every attempt of one
// logical REST operation.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderXRequestID is the header the request id travels in
	HeaderXRequestID = "X-Request-ID"
)

// WithRequestID stores a request id in the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id from ctx if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the id stored in ctx or generates a new one
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return NewRequestID()
}

// NewRequestID generates a random request id
func NewRequestID() string {
	return uuid.New().String()
}
