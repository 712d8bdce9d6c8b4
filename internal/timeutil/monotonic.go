package timeutil

import "time"

// Monotonic reports seconds elapsed since it was created, read from a Clock.
// With RealClock the reading uses Go's monotonic clock, so it is immune to
// wall-clock steps. Safe for concurrent use.
type Monotonic struct {
	clock Clock
	start time.Time
}

// NewMonotonic starts a monotonic seconds source at zero. A nil clock
// defaults to RealClock.
func NewMonotonic(clock Clock) *Monotonic {
	if clock == nil {
		clock = RealClock{}
	}
	return &Monotonic{clock: clock, start: clock.Now()}
}

// Seconds returns the elapsed seconds since the source was created.
func (m *Monotonic) Seconds() float64 {
	return m.clock.Since(m.start).Seconds()
}

// Clock returns the underlying clock.
func (m *Monotonic) Clock() Clock {
	return m.clock
}
