package testfixtures

import (
	"sync"
	"time"
)

// Clock provides a controllable time source for tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialised to the supplied time. When start is the
// zero value, the shared ReferenceTime is used.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the current instant tracked by the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now as a function suitable for dependency injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set updates the clock to the provided time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the updated time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// SetWeekMinute moves the clock to minute of ISO weekday day (Mon=1..Sun=7)
// in the week of ReferenceTime, in UTC.
func (c *Clock) SetWeekMinute(day, minute int) time.Time {
	t := WeekMinute(day, minute)
	c.Set(t)
	return t
}

// WeekMinute returns the UTC instant at minute of ISO weekday day in the
// week containing ReferenceTime.
func WeekMinute(day, minute int) time.Time {
	ref := ReferenceTime()
	isoDay := int(ref.Weekday())
	if isoDay == 0 {
		isoDay = 7
	}
	monday := time.Date(ref.Year(), ref.Month(), ref.Day()-(isoDay-1), 0, 0, 0, 0, time.UTC)
	return monday.AddDate(0, 0, day-1).Add(time.Duration(minute) * time.Minute)
}
