// Package clock abstracts time so run timings are deterministic in tests.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on c since start.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// FakeClock implements Clock for testing. It returns a fixed time, moving
// forward by an optional step after every call.
type FakeClock struct {
	current time.Time
	step    time.Duration
}

// NewFakeClock creates a new FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time, then advances it by the step.
func (c *FakeClock) Now() time.Time {
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// SetStep makes every Now call advance the clock by d.
func (c *FakeClock) SetStep(d time.Duration) {
	c.step = d
}

// Advance moves the fake time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
