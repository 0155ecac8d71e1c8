package rest

import (
	"math"
	"math/rand/v2"
	nethttp "net/http"
	"time"
)

// ThrottlingStatus is always retriable under exponential backoff
const ThrottlingStatus = nethttp.StatusTooManyRequests

// ExponentialBackoffRetry grows the wait by a multiplier per retry, capped at a
// maximum, optionally randomised with equal jitter.
type ExponentialBackoffRetry struct {
	retryBudget
	base        time.Duration
	multiplier  float64
	maxDelay    time.Duration
	equalJitter bool
	randN       func(n int64) int64
}

var _ RetryStrategy = (*ExponentialBackoffRetry)(nil)

// NewExponentialBackoffRetry creates an exponential strategy. A maxDelay of 0
// leaves the wait uncapped.
func NewExponentialBackoffRetry(base time.Duration, multiplier float64, maxDelay time.Duration) *ExponentialBackoffRetry {
	if multiplier < 1 {
		multiplier = 1
	}
	return &ExponentialBackoffRetry{
		retryBudget: newRetryBudget(),
		base:        base,
		multiplier:  multiplier,
		maxDelay:    maxDelay,
		randN:       rand.Int64N,
	}
}

// SetEqualJitter enables waits drawn uniformly from the upper half of the
// deterministic delay.
func (e *ExponentialBackoffRetry) SetEqualJitter(enabled bool) {
	e.equalJitter = enabled
}

func (e *ExponentialBackoffRetry) Start() error {
	return e.start()
}

func (e *ExponentialBackoffRetry) ShouldRetry(o Outcome) bool {
	throttled := !o.IsTransportFailure() && o.Status == ThrottlingStatus
	if !throttled && !e.isRetriable(o) {
		return false
	}
	return e.allows(e.sleepBefore(e.retries + 2))
}

// NextSleepTime returns the wait chosen by the last decision, or the
// deterministic wait before the first retry when no decision was made yet.
func (e *ExponentialBackoffRetry) NextSleepTime() time.Duration {
	if e.nextSleep > 0 {
		return e.nextSleep
	}
	return e.deterministic(e.retries + 2)
}

// deterministic is min(base * multiplier^(attempt-1), maxDelay); the initial
// attempt is number 1.
func (e *ExponentialBackoffRetry) deterministic(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(e.base) * math.Pow(e.multiplier, float64(attempt-1))
	if e.maxDelay > 0 && d >= float64(e.maxDelay) {
		return e.maxDelay
	}
	if d >= math.MaxInt64 || math.IsInf(d, 0) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (e *ExponentialBackoffRetry) sleepBefore(attempt int) time.Duration {
	d := e.deterministic(attempt)
	if !e.equalJitter || d <= 0 {
		return d
	}
	lower := d / 2
	spread := int64(d - lower)
	return lower + time.Duration(e.randN(spread+1))
}
