package resilience

import "time"

// Config composes the four primitives' configurations plus layer policy.
// The zero value is usable: every field falls back to the same defaults the
// primitives apply themselves.
type Config struct {
	// Disabled turns the layer into a pass-through: Execute runs operations
	// directly with no admission control.
	Disabled bool

	// RateLimiter configures the token bucket.
	RateLimiter TokenBucketConfig

	// Concurrency configures the semaphore.
	Concurrency SemaphoreConfig

	// CircuitBreaker configures the breaker.
	CircuitBreaker CircuitBreakerConfig

	// Queue configures the deferred-work priority queue.
	Queue QueueConfig

	// FailFastWhenOpen rejects with a CircuitOpenError instead of queueing
	// when the breaker is open. The default converts transient outages into
	// added latency rather than caller-visible failure.
	FailFastWhenOpen bool

	// DrainInterval is how often the background loop re-attempts queued work.
	// Default: 100ms
	DrainInterval time.Duration

	// MaxQueuedAge evicts deferred requests older than this on every drain
	// tick, rejecting them with ErrRequestExpired.
	// Default: 30 seconds
	MaxQueuedAge time.Duration

	// Classifier resolves operation names to priorities.
	// Default: DefaultClassifier()
	Classifier *Classifier

	// Logger receives diagnostics from the layer and its primitives.
	// Default: NopLogger
	Logger Logger
}

func (c *Config) applyDefaults() {
	if c.DrainInterval <= 0 {
		c.DrainInterval = 100 * time.Millisecond
	}
	if c.MaxQueuedAge <= 0 {
		c.MaxQueuedAge = 30 * time.Second
	}
	if c.Classifier == nil {
		c.Classifier = DefaultClassifier()
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Concurrency.Logger == nil {
		c.Concurrency.Logger = c.Logger
	}
	if c.CircuitBreaker.Logger == nil {
		c.CircuitBreaker.Logger = c.Logger
	}
}
