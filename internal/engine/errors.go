package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/oncomatch/oncomatch/internal/querycompile"
	"github.com/oncomatch/oncomatch/internal/transform"
)

// MatchError represents an error detected while matching one trial.
//
// Per-trial errors are isolated: one trial's failure is recorded in the
// run manifest with its reason code and never drops or corrupts other
// trials' results.
type MatchError struct {
	// Code identifies the error category.
	Code MatchErrorCode

	// Message is a human-readable description.
	Message string

	// Protocol identifies the affected trial.
	Protocol string

	// Collection identifies the collection being compiled or queried,
	// when known.
	Collection string

	// Details contains additional context.
	Details map[string]string
}

// MatchErrorCode categorizes matching errors.
type MatchErrorCode string

const (
	// ErrCodeUnknownTransform indicates a configured transform name was
	// never registered. A configuration bug, fatal for the run.
	ErrCodeUnknownTransform MatchErrorCode = "UNKNOWN_TRANSFORM"

	// ErrCodeUnmappedCriterion indicates a trial criterion key absent
	// from a collection's mapping under the strict policy.
	ErrCodeUnmappedCriterion MatchErrorCode = "UNMAPPED_CRITERION"

	// ErrCodeExternalMappingMissingKey indicates a vocabulary term
	// absent from the loaded external mapping table.
	ErrCodeExternalMappingMissingKey MatchErrorCode = "EXTERNAL_MAPPING_MISSING_KEY"

	// ErrCodeStoreTimeout indicates a store query exceeded the per-trial
	// deadline.
	ErrCodeStoreTimeout MatchErrorCode = "STORE_TIMEOUT"

	// ErrCodeStoreUnavailable indicates a store query failed outright.
	ErrCodeStoreUnavailable MatchErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeInvalidCriteria indicates a trial criteria tree that does
	// not parse.
	ErrCodeInvalidCriteria MatchErrorCode = "INVALID_CRITERIA"
)

// Error implements the error interface.
func (e *MatchError) Error() string {
	if e.Protocol != "" && e.Collection != "" {
		return fmt.Sprintf("%s: %s (protocol=%s, collection=%s)", e.Code, e.Message, e.Protocol, e.Collection)
	}
	if e.Protocol != "" {
		return fmt.Sprintf("%s: %s (protocol=%s)", e.Code, e.Message, e.Protocol)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStoreTimeout returns true if the error is a store timeout error.
// Uses errors.As to handle wrapped errors.
func IsStoreTimeout(err error) bool {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Code == ErrCodeStoreTimeout
	}
	return false
}

// IsUnknownTransform returns true for unregistered-transform errors.
func IsUnknownTransform(err error) bool {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Code == ErrCodeUnknownTransform
	}
	return transform.IsUnknownTransform(err)
}

// classifyTrialError maps an underlying failure onto a MatchError with
// the trial's protocol attached. Already-classified errors pass through
// with the protocol filled in.
func classifyTrialError(protocol string, err error) *MatchError {
	var me *MatchError
	if errors.As(err, &me) {
		if me.Protocol == "" {
			me.Protocol = protocol
		}
		return me
	}

	code := ErrCodeStoreUnavailable
	switch {
	case transform.IsUnknownTransform(err):
		code = ErrCodeUnknownTransform
	case transform.IsMissingTerm(err):
		code = ErrCodeExternalMappingMissingKey
	case transform.IsUnknownToken(err):
		code = ErrCodeInvalidCriteria
	case querycompile.IsUnmappedCriterion(err):
		code = ErrCodeUnmappedCriterion
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeStoreTimeout
	}

	return &MatchError{
		Code:     code,
		Message:  err.Error(),
		Protocol: protocol,
	}
}
