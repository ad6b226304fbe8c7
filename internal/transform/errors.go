package transform

import (
	"errors"
	"fmt"
)

// UnknownTransformError reports a configuration sample_value naming a
// transform that was never registered. This is fatal: the configuration
// references behavior the process does not have.
type UnknownTransformError struct {
	Name string
}

func (e *UnknownTransformError) Error() string {
	return fmt.Sprintf("unknown transform %q", e.Name)
}

// MissingTermError reports a trial vocabulary term absent from the
// external mapping table. Fatal for the criterion that used it; the
// owning trial is excluded from results and reported.
type MissingTermError struct {
	Term string
}

func (e *MissingTermError) Error() string {
	return fmt.Sprintf("external mapping has no entry for term %q", e.Term)
}

// UnknownTokenError reports a curated trial value absent from a fixed
// vocabulary table. Silently treating a typo'd token as a literal value
// would match nothing without a signal, so the owning trial fails the
// way it does for a missing external mapping term.
type UnknownTokenError struct {
	Table string
	Token string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("vocabulary table %q has no entry for token %q", e.Table, e.Token)
}

// IsUnknownTransform reports whether err wraps an UnknownTransformError.
func IsUnknownTransform(err error) bool {
	var te *UnknownTransformError
	return errors.As(err, &te)
}

// IsMissingTerm reports whether err wraps a MissingTermError.
func IsMissingTerm(err error) bool {
	var te *MissingTermError
	return errors.As(err, &te)
}

// IsUnknownToken reports whether err wraps an UnknownTokenError.
func IsUnknownToken(err error) bool {
	var te *UnknownTokenError
	return errors.As(err, &te)
}
