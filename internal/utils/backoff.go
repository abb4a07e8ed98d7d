package utils

import "time"

// Backoff manages the exponential back-off between watch-mode runs:
// quiet runs stretch the interval up to a cap, a run with changes snaps
// it back to the initial value.
type Backoff struct {
	current time.Duration
	initial time.Duration
	max     time.Duration
}

// NewBackoff initializes a Backoff with the given initial and maximum
// intervals.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{
		current: initial,
		initial: initial,
		max:     max,
	}
}

// Current returns the interval to wait before the next run.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Increase doubles the interval, capped at the maximum.
func (b *Backoff) Increase() {
	next := b.current * 2
	if next > b.max {
		next = b.max
	}
	b.current = next
}

// Reset restores the initial interval.
func (b *Backoff) Reset() {
	b.current = b.initial
}
