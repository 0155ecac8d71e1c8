package rest

import (
	"time"
)

// Outcome is the result of one attempt as seen by a RetryStrategy: either a
// transport failure (Err set) or an HTTP status.
type Outcome struct {
	Status int
	Err    error
}

// IsTransportFailure reports whether the attempt produced no response
func (o Outcome) IsTransportFailure() bool {
	return o.Err != nil
}

// RetryStrategy decides whether a failed attempt is re-issued and how long to
// wait first. Instances hold per-operation counters: hand one to a single
// Do/Execute call at a time.
type RetryStrategy interface {
	// Start resets the counters and starts the elapsed-time clock. It fails
	// when the strategy has no stop criteria.
	Start() error
	// ShouldRetry reports whether the outcome is retriable and the remaining
	// budget allows waiting NextSleepTime before the next attempt.
	ShouldRetry(outcome Outcome) bool
	// NextSleepTime is the wait computed by the last ShouldRetry decision.
	NextSleepTime() time.Duration
	// RecordRetry accounts one retry after the wait completed.
	RecordRetry()
	RetryCount() int
	ElapsedTime() time.Duration
}

// retryBudget holds the stop criteria and the retriable-outcome rules each
// concrete strategy embeds.
type retryBudget struct {
	maxAttempts          int
	maxElapsed           time.Duration
	retriableStatuses    map[int]struct{}
	retryOnServerErrors  bool
	retryOnGenericErrors bool

	retries   int
	started   time.Time
	nextSleep time.Duration
	now       func() time.Time
}

func newRetryBudget() retryBudget {
	return retryBudget{
		retriableStatuses:    make(map[int]struct{}),
		retryOnGenericErrors: true,
		now:                  time.Now,
	}
}

// SetMaxAttempts caps the number of retries; 0 removes the cap.
func (b *retryBudget) SetMaxAttempts(n int) {
	if n >= 0 {
		b.maxAttempts = n
	}
}

func (b *retryBudget) MaxAttempts() int { return b.maxAttempts }

// SetMaxElapsedTime caps the total time spent on the operation; 0 removes the cap.
func (b *retryBudget) SetMaxElapsedTime(d time.Duration) {
	if d >= 0 {
		b.maxElapsed = d
	}
}

func (b *retryBudget) MaxElapsedTime() time.Duration { return b.maxElapsed }

// AddRetriableStatus marks HTTP statuses as retriable
func (b *retryBudget) AddRetriableStatus(statuses ...int) {
	for _, s := range statuses {
		b.retriableStatuses[s] = struct{}{}
	}
}

// SetRetryOnServerErrors makes every 5xx status retriable
func (b *retryBudget) SetRetryOnServerErrors(enabled bool) {
	b.retryOnServerErrors = enabled
}

// SetRetryOnGenericErrors controls whether transport failures are retried (default true)
func (b *retryBudget) SetRetryOnGenericErrors(enabled bool) {
	b.retryOnGenericErrors = enabled
}

func (b *retryBudget) RetryCount() int { return b.retries }

// ElapsedTime is the time since Start, or zero before the first attempt
func (b *retryBudget) ElapsedTime() time.Duration {
	if b.started.IsZero() {
		return 0
	}
	return b.now().Sub(b.started)
}

func (b *retryBudget) RecordRetry() {
	b.retries++
}

func (b *retryBudget) start() error {
	if b.maxAttempts == 0 && b.maxElapsed == 0 {
		return NewConfigurationError(msgMissingStopCriteria)
	}
	b.retries = 0
	b.nextSleep = 0
	b.started = b.now()
	return nil
}

func (b *retryBudget) isRetriable(o Outcome) bool {
	if o.IsTransportFailure() {
		return b.retryOnGenericErrors
	}
	if _, ok := b.retriableStatuses[o.Status]; ok {
		return true
	}
	return b.retryOnServerErrors && IsServerErrorStatus(o.Status)
}

// allows records next as the pending wait and checks it against the budget.
// The elapsed cap is compared with the time already spent plus the pending
// wait, so the last permitted retry is the one whose wait still ends inside
// the cap.
func (b *retryBudget) allows(next time.Duration) bool {
	b.nextSleep = next
	if b.maxAttempts > 0 && b.retries >= b.maxAttempts {
		return false
	}
	if b.maxElapsed > 0 && b.ElapsedTime()+next >= b.maxElapsed {
		return false
	}
	return true
}

// FixedRetry waits the same delay before every retry
type FixedRetry struct {
	retryBudget
	delay time.Duration
}

var _ RetryStrategy = (*FixedRetry)(nil)

// NewFixedRetry creates a fixed-interval strategy. At least one of
// SetMaxAttempts or SetMaxElapsedTime must be called before use.
func NewFixedRetry(delay time.Duration) *FixedRetry {
	return &FixedRetry{retryBudget: newRetryBudget(), delay: delay}
}

func (f *FixedRetry) Start() error {
	return f.start()
}

func (f *FixedRetry) ShouldRetry(o Outcome) bool {
	if !f.isRetriable(o) {
		return false
	}
	return f.allows(f.delay)
}

// NextSleepTime is the configured delay, constant across retries
func (f *FixedRetry) NextSleepTime() time.Duration {
	return f.delay
}
