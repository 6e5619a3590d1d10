package sync

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period a burst of triggers must
// outlast before the debounced function fires.
const DefaultDebounceWindow = 2 * time.Second

// Debouncer collapses bursts of triggers into a single call: the wrapped
// function runs once the triggers go quiet for the configured window.
// Safe for concurrent use.
type Debouncer struct {
	window time.Duration
	fn     func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer wraps fn with a debounce window. A non-positive window
// falls back to the default.
func NewDebouncer(window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}

	return &Debouncer{window: window, fn: fn}
}

// Trigger schedules fn to run after the window elapses, resetting the
// countdown if one is already pending.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, d.fn)
}

// Stop cancels any pending call. It does not wait for a call already in
// flight.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
