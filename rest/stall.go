package rest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	minStallTick = 10 * time.Millisecond
	maxStallTick = time.Second
)

// stallMonitor cancels an attempt when its throughput stays below limit
// bytes/sec for a whole window. Bytes read from the response body and written
// from the request body both count as transferred.
type stallMonitor struct {
	limit       int64
	window      time.Duration
	cancel      context.CancelCauseFunc
	transferred atomic.Int64
	done        chan struct{}
	stopOnce    sync.Once
}

// stallMessage reports the window in whole seconds, rounded up
func stallMessage(limit int64, window time.Duration) string {
	seconds := int64((window + time.Second - 1) / time.Second)
	return fmt.Sprintf("Operation too slow. Less than %d bytes/sec transferred the last %d seconds",
		limit, seconds)
}

func totalTimeoutMessage(total time.Duration) string {
	return fmt.Sprintf("Operation timed out after %d milliseconds", total.Milliseconds())
}

// startStallMonitor returns nil when the detector is disabled
func startStallMonitor(limit int64, window time.Duration, cancel context.CancelCauseFunc) *stallMonitor {
	if limit <= 0 || window <= 0 {
		return nil
	}
	m := &stallMonitor{
		limit:  limit,
		window: window,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *stallMonitor) run() {
	tick := min(max(m.window/4, minStallTick), maxStallTick)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var slowSince time.Time
	last := time.Now()
	lastBytes := int64(0)

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			total := m.transferred.Load()
			interval := now.Sub(last).Seconds()
			if interval <= 0 || float64(total-lastBytes)/interval >= float64(m.limit) {
				slowSince = time.Time{}
			} else {
				if slowSince.IsZero() {
					slowSince = last
				}
				if now.Sub(slowSince) >= m.window {
					m.cancel(NewTimeoutError(stallMessage(m.limit, m.window), context.DeadlineExceeded))
					return
				}
			}
			last, lastBytes = now, total
		}
	}
}

func (m *stallMonitor) stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *stallMonitor) add(n int) {
	if m != nil && n > 0 {
		m.transferred.Add(int64(n))
	}
}

// wrapReader counts bytes flowing through r. A nil monitor returns r unchanged.
func (m *stallMonitor) wrapReader(r io.ReadCloser) io.ReadCloser {
	if m == nil || r == nil {
		return r
	}
	return &countingReader{ReadCloser: r, monitor: m}
}

type countingReader struct {
	io.ReadCloser
	monitor *stallMonitor
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.monitor.add(n)
	return n, err
}
