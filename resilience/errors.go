package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations. Typed errors below unwrap to
// these so callers can branch with errors.Is and still recover diagnostic
// fields with errors.As.
var (
	// ErrRateLimited is returned when token acquisition times out.
	ErrRateLimited = errors.New("resilience: rate limit exceeded")

	// ErrAcquireTimeout is returned when a semaphore wait times out.
	ErrAcquireTimeout = errors.New("resilience: concurrency acquire timed out")

	// ErrWaitersFull is returned when the semaphore wait list is at capacity.
	ErrWaitersFull = errors.New("resilience: concurrency wait queue full")

	// ErrQueueFull is returned when a priority sub-queue rejects an enqueue.
	ErrQueueFull = errors.New("resilience: priority queue at capacity")

	// ErrCircuitOpen is returned when the circuit breaker refuses execution.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRequestExpired is returned to queued requests evicted for staleness.
	ErrRequestExpired = errors.New("resilience: queued request expired")

	// ErrRequestCancelled is returned to queued requests cancelled by id.
	ErrRequestCancelled = errors.New("resilience: queued request cancelled")

	// ErrSemaphoreReset is returned to waiters when the semaphore is reset.
	ErrSemaphoreReset = errors.New("resilience: semaphore reset")

	// ErrLayerStopped is returned to deferred requests when the layer stops.
	ErrLayerStopped = errors.New("resilience: layer stopped")
)

// RateLimitError reports a token acquisition that timed out.
type RateLimitError struct {
	// Tokens is the number of tokens available when the acquire gave up.
	Tokens float64

	// RefillIn is the time until the next token becomes available.
	RefillIn time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("resilience: rate limit exceeded (%.2f tokens available, next token in %s)", e.Tokens, e.RefillIn)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// AcquireTimeoutError reports a semaphore wait that timed out.
type AcquireTimeoutError struct {
	// Timeout is the wait budget that elapsed.
	Timeout time.Duration

	// Waiting is the number of requests still waiting when the timeout fired.
	Waiting int
}

func (e *AcquireTimeoutError) Error() string {
	return fmt.Sprintf("resilience: concurrency acquire timed out after %s (%d waiting)", e.Timeout, e.Waiting)
}

func (e *AcquireTimeoutError) Unwrap() error { return ErrAcquireTimeout }

// WaitersFullError reports a semaphore wait list at capacity.
type WaitersFullError struct {
	// Waiting is the number of waiters at rejection time.
	Waiting int

	// Limit is the configured wait-list capacity.
	Limit int
}

func (e *WaitersFullError) Error() string {
	return fmt.Sprintf("resilience: concurrency wait queue full (%d waiting, limit %d)", e.Waiting, e.Limit)
}

func (e *WaitersFullError) Unwrap() error { return ErrWaitersFull }

// QueueFullError reports a priority sub-queue at capacity.
type QueueFullError struct {
	// Priority is the sub-queue that rejected the request.
	Priority Priority

	// Size is the sub-queue's configured capacity.
	Size int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("resilience: %s priority queue at capacity (%d)", e.Priority, e.Size)
}

func (e *QueueFullError) Unwrap() error { return ErrQueueFull }

// CircuitOpenError reports execution refused by an open circuit.
type CircuitOpenError struct {
	// RetryAfter is the time until the breaker transitions to half-open.
	// Zero when the breaker is already half-open but out of trial slots.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("resilience: circuit breaker is open (retry after %s)", e.RetryAfter)
	}
	return "resilience: circuit breaker is open"
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// IsBackpressure reports whether err is one of the layer's own admission
// errors. Backpressure errors must not be retried blindly: the layer has
// already decided to shed load.
func IsBackpressure(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrAcquireTimeout) ||
		errors.Is(err, ErrWaitersFull) ||
		errors.Is(err, ErrQueueFull) ||
		errors.Is(err, ErrCircuitOpen)
}
