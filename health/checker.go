package health

import (
	"context"
	"time"
)

// Status is a three-level health verdict for one watched component.
type Status int

const (
	// StatusHealthy means the component is operating normally.
	StatusHealthy Status = iota
	// StatusDegraded means the component works but with reduced capacity,
	// for example a resilience layer probing a recovering backend.
	StatusDegraded
	// StatusUnhealthy means the component is down or unusable.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is one check outcome: the verdict plus whatever diagnostics the
// checker chose to attach.
type Result struct {
	Status Status

	// Message is a short human-readable explanation of the verdict.
	Message string

	// Details carries checker-specific diagnostics, e.g. circuit state and
	// queue depth for a resilience layer.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check ran.
	Timestamp time.Time

	// Error is set when the verdict is unhealthy.
	Error error
}

// Healthy builds a healthy result with the given message.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded builds a degraded result with the given message.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy builds an unhealthy result carrying the causing error.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails returns a copy of the result with diagnostics attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration returns a copy of the result with the elapsed time set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker is one watched component: the resilience layer guarding the
// backend, the Go runtime, or anything else the host registers.
//
// Contract:
// - Concurrency: Check must be safe for concurrent use.
// - Context: Check should return promptly once ctx is done; the aggregator
//   enforces its own timeout around slow checkers regardless.
type Checker interface {
	// Name identifies the component in aggregated results.
	Name() string

	// Check reports the component's current health.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a plain function into a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the component in aggregated results.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check reports the component's current health.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}
