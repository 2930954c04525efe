package monitor

import "time"

// Deferrer schedules work off the hot path. The runtime has no idle-priority
// primitive, so the production implementation is a fixed short delay; tests
// substitute a synchronous one. Selected at construction, never re-detected.
type Deferrer interface {
	Defer(fn func())
}

// TimerDeferrer runs fn on its own goroutine after a fixed delay.
type TimerDeferrer struct {
	Delay time.Duration
}

// Defer schedules fn after the configured delay (100ms when unset).
func (d TimerDeferrer) Defer(fn func()) {
	delay := d.Delay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	time.AfterFunc(delay, fn)
}
