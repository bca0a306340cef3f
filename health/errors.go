package health

import "errors"

var (
	// ErrCheckFailed marks an unhealthy verdict with no more specific cause,
	// e.g. an open circuit or critical heap pressure.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is set on results for checkers that outran the
	// aggregator's timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned when a named checker is not registered.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
