package services

import "time"

// Clock returns today's civil date as midnight UTC.
type Clock func() time.Time

// NewClock returns a Clock that reads the wall clock in loc.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return DateOf(time.Now().In(loc)) }
}

// FixedClock always returns the civil date of t. Used by tests and tooling.
func FixedClock(t time.Time) Clock {
	d := DateOf(t)
	return func() time.Time { return d }
}

// DateOf drops the time of day, keeping the civil date of t as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b. It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
