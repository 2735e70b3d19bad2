// Package timer is a small convenience for measuring durations in the units
// emitted on events, fractional milliseconds.
package timer

import "time"

// Timer measures elapsed time from a fixed starting point.
type Timer interface {
	// Finish returns the number of milliseconds elapsed since the timer
	// started.
	Finish() float64
}

type timer struct {
	start time.Time
}

// Start returns a Timer running from now.
func Start() Timer {
	return New(time.Now())
}

// New returns a Timer running from the provided start time.
func New(start time.Time) Timer {
	return &timer{start: start}
}

func (t *timer) Finish() float64 {
	return float64(time.Since(t.start)) / float64(time.Millisecond)
}
