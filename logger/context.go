package logger

import (
	"context"
	"sync/atomic"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// restCounterKey tracks the number of REST attempts issued on behalf of one request
	restCounterKey contextKey = "rest_call_counter"
	// restElapsedKey tracks the total time spent in REST attempts
	restElapsedKey contextKey = "rest_elapsed_nanos"
)

// WithRESTCounter creates a new context with a REST call counter and elapsed time tracker
func WithRESTCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, restCounterKey, &counter)
	ctx = context.WithValue(ctx, restElapsedKey, &elapsed)
	return ctx
}

// IncrementRESTCounter increments the REST call counter in the context
func IncrementRESTCounter(ctx context.Context) {
	if counter, ok := ctx.Value(restCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetRESTCounter returns the current REST call count from the context
func GetRESTCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(restCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddRESTElapsed adds elapsed nanoseconds to the REST elapsed time in the context
func AddRESTElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(restElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetRESTElapsed returns the accumulated REST elapsed time in nanoseconds
func GetRESTElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(restElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
