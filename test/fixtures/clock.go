// Package fixtures provides test helpers shared by unit and integration tests.
package fixtures

import (
	"sync"
	"time"
)

// ManualClock is a domain.Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock stopped at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current fake time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Day is the fixed calendar day used by scenario tests.
var Day = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

// At returns hh:mm on Day.
func At(hh, mm int) time.Time {
	return Day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}
