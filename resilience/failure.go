package resilience

import (
	"errors"
	"strings"
)

// FailureClass explicitly tags an error as system or non-system, bypassing
// the substring taxonomy.
type FailureClass int

const (
	// FailureSystem marks backend distress: timeouts, connection errors,
	// internal errors. System failures count toward the circuit breaker and
	// are eligible for backoff retry.
	FailureSystem FailureClass = iota
	// FailureNonSystem marks caller mistakes or legitimate empty results.
	// They propagate immediately and never degrade the circuit's health
	// signal.
	FailureNonSystem
)

// ClassifiedError wraps an error with an explicit failure class. Hosts that
// know an outcome is a business result should tag it rather than rely on
// message matching.
type ClassifiedError struct {
	Class FailureClass
	Err   error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NonSystem tags err as a non-system failure.
func NonSystem(err error) error {
	return &ClassifiedError{Class: FailureNonSystem, Err: err}
}

// nonSystemMarkers are matched case-insensitively against error text. They
// cover the backend's not-found, validation, conflict, empty-result,
// permission, configuration, and declared business-logic outcomes.
var nonSystemMarkers = []string{
	"not found",
	"not_found",
	"notfound",
	"does not exist",
	"validation",
	"invalid",
	"malformed",
	"already exists",
	"already_exists",
	"duplicate",
	"conflict",
	"empty result",
	"no results",
	"no data",
	"permission",
	"unauthorized",
	"forbidden",
	"access denied",
	"misconfigured",
	"configuration error",
	"business rule",
}

// IsNonSystemFailure reports whether err represents a caller mistake or a
// legitimate empty result rather than backend distress. An explicit
// ClassifiedError wins; otherwise the error text is matched against the
// known taxonomy. Backpressure errors from the layer itself are never
// non-system: they are their own category and handled upstream.
func IsNonSystemFailure(err error) bool {
	if err == nil {
		return false
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class == FailureNonSystem
	}

	if IsBackpressure(err) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range nonSystemMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
