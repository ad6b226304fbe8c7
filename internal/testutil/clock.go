// Package testutil holds shared test fixtures.
package testutil

import "time"

// FixedClock returns the same instant on every call. Age-derived
// predicates computed against it are stable across test runs.
type FixedClock struct {
	Instant time.Time
}

// NewFixedClock pins the clock to the given instant.
func NewFixedClock(instant time.Time) FixedClock {
	return FixedClock{Instant: instant}
}

// Now returns the pinned instant.
func (c FixedClock) Now() time.Time {
	return c.Instant
}

// StaticNow is the conventional pinned instant used across test
// fixtures in this repository.
var StaticNow = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
