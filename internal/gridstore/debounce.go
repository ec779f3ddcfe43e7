package gridstore

import (
	"sync"
	"time"
)

// debouncer coalesces rapid triggers into one fn call fired after a quiet
// period (trailing edge). Used for the persistence hand-off so a burst of
// cell edits produces a single save.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// trigger (re)arms the timer. Each call pushes the firing point out by the
// full delay.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// cancel drops any pending firing without running fn.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// flush cancels any pending timer and runs fn immediately.
func (d *debouncer) flush() {
	d.cancel()
	d.fn()
}
