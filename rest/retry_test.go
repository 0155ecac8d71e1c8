package rest

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func newFixed(clock *fakeClock, delay time.Duration) *FixedRetry {
	f := NewFixedRetry(delay)
	f.now = clock.Now
	return f
}

func newExponential(clock *fakeClock, base time.Duration, multiplier float64, maxDelay time.Duration) *ExponentialBackoffRetry {
	e := NewExponentialBackoffRetry(base, multiplier, maxDelay)
	e.now = clock.Now
	return e
}

func TestStartRequiresStopCriteria(t *testing.T) {
	strategies := map[string]RetryStrategy{
		"fixed":       NewFixedRetry(time.Second),
		"exponential": NewExponentialBackoffRetry(time.Second, 2, 4*time.Second),
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			err := strategy.Start()
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.Equal(t, "A stop criteria must be defined to avoid infinite retries.", err.Error())
		})
	}
}

func TestStartResetsCounters(t *testing.T) {
	clock := newFakeClock()
	f := newFixed(clock, time.Second)
	f.SetMaxAttempts(3)

	assert.Zero(t, f.ElapsedTime())
	assert.Equal(t, 3, simulate(t, f, clock, Outcome{Err: errRefused}, 0))
	assert.Equal(t, 3*time.Second, f.ElapsedTime())

	require.NoError(t, f.Start())
	assert.Zero(t, f.RetryCount())
	assert.Zero(t, f.ElapsedTime())
}

func TestFixedRetryMaxAttempts(t *testing.T) {
	clock := newFakeClock()
	f := newFixed(clock, 10*time.Millisecond)
	f.SetMaxAttempts(2)

	assert.Equal(t, 2, simulate(t, f, clock, Outcome{Err: errRefused}, 0))
	assert.Equal(t, 10*time.Millisecond, f.NextSleepTime())
	assert.Equal(t, 2, f.MaxAttempts())
}

func TestFixedRetryMaxElapsedTime(t *testing.T) {
	clock := newFakeClock()
	f := newFixed(clock, time.Second)
	f.SetMaxElapsedTime(5 * time.Second)

	// waits end at 1s, 2s, 3s and 4s; a fifth would end at the cap
	assert.Equal(t, 4, simulate(t, f, clock, Outcome{Err: errRefused}, 0))
	assert.Equal(t, 5*time.Second, f.MaxElapsedTime())
}

func TestRetriableOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*FixedRetry)
		outcome   Outcome
		want      bool
	}{
		{
			name:    "transport failure retried by default",
			outcome: Outcome{Err: errRefused},
			want:    true,
		},
		{
			name:      "transport failure with generic errors disabled",
			configure: func(f *FixedRetry) { f.SetRetryOnGenericErrors(false) },
			outcome:   Outcome{Err: errRefused},
			want:      false,
		},
		{
			name:    "server error not retried by default",
			outcome: Outcome{Status: http.StatusInternalServerError},
			want:    false,
		},
		{
			name:      "explicit status",
			configure: func(f *FixedRetry) { f.AddRetriableStatus(http.StatusServiceUnavailable) },
			outcome:   Outcome{Status: http.StatusServiceUnavailable},
			want:      true,
		},
		{
			name:      "explicit status does not cover other server errors",
			configure: func(f *FixedRetry) { f.AddRetriableStatus(http.StatusServiceUnavailable) },
			outcome:   Outcome{Status: http.StatusInternalServerError},
			want:      false,
		},
		{
			name:      "server errors enabled",
			configure: func(f *FixedRetry) { f.SetRetryOnServerErrors(true) },
			outcome:   Outcome{Status: http.StatusBadGateway},
			want:      true,
		},
		{
			name:      "server errors enabled ignores client errors",
			configure: func(f *FixedRetry) { f.SetRetryOnServerErrors(true) },
			outcome:   Outcome{Status: http.StatusNotFound},
			want:      false,
		},
		{
			name:    "throttling not implicit for fixed",
			outcome: Outcome{Status: http.StatusTooManyRequests},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFixedRetry(time.Millisecond)
			f.SetMaxAttempts(1)
			if tt.configure != nil {
				tt.configure(f)
			}
			require.NoError(t, f.Start())
			assert.Equal(t, tt.want, f.ShouldRetry(tt.outcome))
		})
	}
}

func TestExponentialDeterministicDelays(t *testing.T) {
	clock := newFakeClock()
	e := newExponential(clock, time.Second, 2, 4*time.Second)
	e.SetMaxAttempts(5)
	require.NoError(t, e.Start())

	var waits []time.Duration
	for e.ShouldRetry(Outcome{Status: ThrottlingStatus}) {
		waits = append(waits, e.NextSleepTime())
		e.RecordRetry()
	}

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}, waits)
}

func TestExponentialUncappedGrowth(t *testing.T) {
	e := NewExponentialBackoffRetry(100*time.Millisecond, 3, 0)

	assert.Equal(t, 100*time.Millisecond, e.deterministic(1))
	assert.Equal(t, 300*time.Millisecond, e.deterministic(2))
	assert.Equal(t, 900*time.Millisecond, e.deterministic(3))
	assert.Equal(t, time.Duration(1<<63-1), e.deterministic(500))
}

func TestExponentialEqualJitterBounds(t *testing.T) {
	e := NewExponentialBackoffRetry(time.Second, 2, 4*time.Second)
	e.SetEqualJitter(true)

	for attempt := 2; attempt <= 6; attempt++ {
		d := e.deterministic(attempt)
		for range 50 {
			got := e.sleepBefore(attempt)
			assert.GreaterOrEqual(t, got, d/2)
			assert.LessOrEqual(t, got, d)
		}
	}
}

func TestExponentialNextSleepIsStable(t *testing.T) {
	clock := newFakeClock()
	e := newExponential(clock, time.Second, 2, 4*time.Second)
	e.SetEqualJitter(true)
	e.SetMaxAttempts(3)
	require.NoError(t, e.Start())

	require.True(t, e.ShouldRetry(Outcome{Status: ThrottlingStatus}))
	first := e.NextSleepTime()
	assert.Equal(t, first, e.NextSleepTime())
}

func TestExponentialThrottlingAlwaysRetriable(t *testing.T) {
	e := NewExponentialBackoffRetry(time.Millisecond, 2, time.Second)
	e.SetMaxAttempts(1)
	require.NoError(t, e.Start())

	assert.True(t, e.ShouldRetry(Outcome{Status: http.StatusTooManyRequests}))
	assert.False(t, e.ShouldRetry(Outcome{Status: http.StatusInternalServerError}))
}

func TestExponentialElapsedEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		randN func(int64) int64
		want  int
	}{
		{name: "shortest waits", randN: func(int64) int64 { return 0 }, want: 6},
		{name: "longest waits", randN: func(n int64) int64 { return n - 1 }, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			e := newExponential(clock, time.Second, 2, 4*time.Second)
			e.SetEqualJitter(true)
			e.SetMaxElapsedTime(12 * time.Second)
			e.randN = tt.randN

			assert.Equal(t, tt.want, simulate(t, e, clock, Outcome{Status: ThrottlingStatus}, 0))
		})
	}
}

func TestExponentialElapsedEnvelopeRandom(t *testing.T) {
	for range 100 {
		clock := newFakeClock()
		e := newExponential(clock, time.Second, 2, 4*time.Second)
		e.SetEqualJitter(true)
		e.SetMaxElapsedTime(12 * time.Second)

		retries := simulate(t, e, clock, Outcome{Status: ThrottlingStatus}, 0)
		assert.GreaterOrEqual(t, retries, 3)
		assert.LessOrEqual(t, retries, 6)
	}
}
