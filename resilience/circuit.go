package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is probing whether the backend recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	// Default: 2
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// HalfOpenMaxConcurrent caps simultaneous trial requests while half-open,
	// so a recovering backend is not hit by a thundering herd the instant the
	// timeout elapses.
	// Default: 1
	HalfOpenMaxConcurrent int

	// IsFailure determines whether an error counts toward the failure
	// threshold. Default: system failures only (see IsNonSystemFailure).
	IsFailure func(err error) bool

	// Lifecycle callbacks. They fire synchronously inside the execution path
	// and must stay side-effect-light.
	OnOpen     func()
	OnHalfOpen func()
	OnClose    func()

	// Logger receives state-transition events.
	// Default: NopLogger
	Logger Logger
}

// CircuitBreaker tracks backend health with a three-state machine. The
// open to half-open transition is lazy: it happens on the next state query
// or execution attempt after OpenTimeout elapses, never via a background
// timer. There is no terminal state; the machine cycles indefinitely.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	halfOpenInFlight int
	openedAt         time.Time
	totalFailures    int64
	totalSuccesses   int64
	rejected         int64
	openCount        int64
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxConcurrent <= 0 {
		config.HalfOpenMaxConcurrent = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !IsNonSystemFailure(err)
		}
	}
	if config.Logger == nil {
		config.Logger = NopLogger{}
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the operation if the breaker admits it, recording the outcome.
// When the breaker refuses, it fails fast with a CircuitOpenError carrying
// the time until the next probe window; the operation is not invoked.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// AllowsExecution reports whether the breaker would admit a request right
// now: closed, or half-open with a spare trial slot. It does not consume a
// trial slot.
func (cb *CircuitBreaker) AllowsExecution() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateClosed:
		return true
	case StateHalfOpen:
		return cb.halfOpenInFlight < cb.config.HalfOpenMaxConcurrent
	default:
		return false
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// TimeUntilClose returns how long until an open circuit begins probing.
// Zero when the circuit is not open.
func (cb *CircuitBreaker) TimeUntilClose() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentStateLocked() != StateOpen {
		return 0
	}
	remaining := cb.config.OpenTimeout - time.Since(cb.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ForceOpen opens the circuit as an operational override (e.g. a maintenance
// window), distinct from organically observed failures.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	cb.transitionLocked(StateOpen)
	cb.mu.Unlock()
}

// ForceClose closes the circuit and clears its failure accounting.
func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	cb.failures = 0
	cb.successes = 0
	cb.transitionLocked(StateClosed)
	cb.mu.Unlock()
}

// Reset restores the breaker to its initial closed state and clears all
// counters, cumulative metrics included.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenInFlight = 0
	cb.totalFailures = 0
	cb.totalSuccesses = 0
	cb.rejected = 0
	cb.openCount = 0
	cb.transitionLocked(StateClosed)
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		cb.rejected++
		retryAfter := cb.config.OpenTimeout - time.Since(cb.openedAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &CircuitOpenError{RetryAfter: retryAfter}

	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxConcurrent {
			cb.rejected++
			return &CircuitOpenError{}
		}
		cb.halfOpenInFlight++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	if isFailure {
		cb.totalFailures++
	} else {
		cb.totalSuccesses++
	}

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.failures++
			if cb.failures >= cb.config.FailureThreshold {
				cb.transitionLocked(StateOpen)
			}
		} else {
			// Failures must be consecutive to trip the breaker.
			cb.failures = 0
		}

	case StateHalfOpen:
		if cb.halfOpenInFlight > 0 {
			cb.halfOpenInFlight--
		}
		if isFailure {
			// Failed probe: back to open, restarting the timeout.
			cb.transitionLocked(StateOpen)
		} else {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.failures = 0
				cb.transitionLocked(StateClosed)
			}
		}

	case StateOpen:
		// An in-flight request finished after the breaker opened; the
		// outcome is already counted in the totals.
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.OpenTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(next State) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next

	switch next {
	case StateOpen:
		cb.openedAt = time.Now()
		cb.openCount++
		if cb.config.OnOpen != nil {
			cb.config.OnOpen()
		}
	case StateHalfOpen:
		cb.successes = 0
		cb.halfOpenInFlight = 0
		if cb.config.OnHalfOpen != nil {
			cb.config.OnHalfOpen()
		}
	case StateClosed:
		if cb.config.OnClose != nil {
			cb.config.OnClose()
		}
	}

	cb.config.Logger.Info(context.Background(), "circuit state changed",
		Field{Key: "from", Value: prev.String()},
		Field{Key: "to", Value: next.String()})
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:            cb.currentStateLocked(),
		Failures:         cb.failures,
		Successes:        cb.successes,
		HalfOpenInFlight: cb.halfOpenInFlight,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		Rejected:         cb.rejected,
		OpenCount:        cb.openCount,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State            State
	Failures         int
	Successes        int
	HalfOpenInFlight int
	TotalFailures    int64
	TotalSuccesses   int64
	Rejected         int64
	OpenCount        int64
}
