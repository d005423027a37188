// Package system provides the wall clock used for run reports and row
// timestamps.
package system

import "time"

// Clock reads the wall clock in UTC, truncated to microseconds so values
// survive a round trip through a Postgres timestamptz unchanged.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
