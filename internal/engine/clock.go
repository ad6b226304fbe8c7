package engine

import "time"

// systemClock is the production clock for age-derived predicates.
// Tests inject testutil.FixedClock instead so age cutoffs don't drift.
type systemClock struct{}

// SystemClock returns a clock backed by the wall clock.
func SystemClock() systemClock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}
