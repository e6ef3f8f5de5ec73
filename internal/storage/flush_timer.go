package storage

import (
	"sync"
	"time"
)

// flushTimer fires once per interval measured from the last Reset. The
// writer resets it after every flush, whatever triggered the flush, so the
// periodic flush always means "interval since the last flush".
type flushTimer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	stopped  bool
}

func newFlushTimer(interval time.Duration) *flushTimer {
	return &flushTimer{
		interval: interval,
		timer:    time.NewTimer(interval),
	}
}

// Reset restarts the interval. It is a no-op after Stop.
func (t *flushTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.timer.Reset(t.interval)
}

// C fires when the interval elapses.
func (t *flushTimer) C() <-chan time.Time {
	return t.timer.C
}

// Stop prevents further firing. Safe to call more than once.
func (t *flushTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.stopped {
		t.timer.Stop()
		t.stopped = true
	}
}
