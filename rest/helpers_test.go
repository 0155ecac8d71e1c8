package rest

import (
	"maps"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/restbricks/logger"
	"github.com/gaborage/restbricks/testing/restserver"
)

const (
	testRestClientRequest  = "REST client request"
	testRestClientResponse = "REST client response"
	testRestClientRetry    = "REST client retrying request"
	testRestClientFailed   = "REST client request failed"
)

type loggedEvent struct {
	level   string
	fields  map[string]any
	message string
}

// fakeLogger records events; safe for use from concurrent requests
type fakeLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *fakeLogger) event(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: map[string]any{}}
}

func (l *fakeLogger) Info() logger.LogEvent                     { return l.event("info") }
func (l *fakeLogger) Error() logger.LogEvent                    { return l.event("error") }
func (l *fakeLogger) Debug() logger.LogEvent                    { return l.event("debug") }
func (l *fakeLogger) Warn() logger.LogEvent                     { return l.event("warn") }
func (l *fakeLogger) WithContext(_ any) logger.Logger           { return l }
func (l *fakeLogger) WithFields(_ map[string]any) logger.Logger { return l }

func (l *fakeLogger) byMessage(msg string) []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []loggedEvent
	for _, e := range l.events {
		if e.message == msg {
			out = append(out, e)
		}
	}
	return out
}

type fakeLogEvent struct {
	logger *fakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()
	e.logger.events = append(e.logger.events, loggedEvent{level: e.level, fields: maps.Clone(e.fields), message: msg})
}

func (e *fakeLogEvent) Msgf(format string, _ ...any) { e.Msg(format) }

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Bool(key string, value bool) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = string(val)
	return e
}

// startHarness serves the REST harness and returns a service pointed at it
func startHarness(t *testing.T, opts ...Option) (*Service, *restserver.Server, *httptest.Server) {
	t.Helper()
	srv, ts := restserver.Start(t)
	return NewService(ts.URL, false, logger.Nop(), opts...), srv, ts
}

// echoHeader returns a request header as reported by the echo endpoints
func echoHeader(t *testing.T, resp *Response, name string) (string, bool) {
	t.Helper()
	doc, err := resp.JSON()
	require.NoError(t, err)
	headers, err := doc.GetMap("headers")
	require.NoError(t, err)
	v := headers.Get(name)
	if v.IsUndefined() {
		return "", false
	}
	s, err := v.AsString()
	require.NoError(t, err)
	return s, true
}

// fakeClock is a manually advanced time source for retry strategies
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// simulate drives strategy through outcome until it gives up, advancing the
// clock by each wait and by attemptCost per attempt. It returns the retries.
func simulate(t *testing.T, strategy RetryStrategy, clock *fakeClock, outcome Outcome, attemptCost time.Duration) int {
	t.Helper()
	require.NoError(t, strategy.Start())
	for i := 0; i < 1000; i++ {
		clock.Advance(attemptCost)
		if !strategy.ShouldRetry(outcome) {
			return strategy.RetryCount()
		}
		clock.Advance(strategy.NextSleepTime())
		strategy.RecordRetry()
	}
	t.Fatal("strategy never stopped")
	return -1
}
