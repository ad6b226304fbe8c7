package querycompile

import (
	"errors"
	"fmt"
)

// UnmappedCriterionError reports a trial criterion key with no entry in
// a collection's trial_key_mappings. Under the strict policy this is
// fatal for the trial; under the lenient policy the translator never
// produces it.
type UnmappedCriterionError struct {
	Key        string
	Collection string
}

func (e *UnmappedCriterionError) Error() string {
	return fmt.Sprintf("criterion key %q has no mapping for collection %q", e.Key, e.Collection)
}

// IsUnmappedCriterion reports whether err wraps an UnmappedCriterionError.
func IsUnmappedCriterion(err error) bool {
	var te *UnmappedCriterionError
	return errors.As(err, &te)
}
