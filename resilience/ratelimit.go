package resilience

import (
	"context"
	"sync"
	"time"
)

// TokenBucketConfig configures the token bucket rate limiter.
type TokenBucketConfig struct {
	// BucketSize is the maximum number of tokens (burst capacity).
	// Default: 10
	BucketSize int

	// RefillRate is the number of tokens added per second.
	// Default: 100
	RefillRate float64

	// MaxWait is the maximum cumulative time Acquire waits for a token.
	// Default: 1 second
	MaxWait time.Duration
}

// TokenBucket is a classic token bucket rate limiter. A caller may burst up
// to BucketSize acquisitions back to back; sustained throughput is capped at
// RefillRate per second. Refill is lazy: tokens are recomputed from elapsed
// wall-clock time on every access, never by a background timer.
type TokenBucket struct {
	config TokenBucketConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	throttled  int64
	waitTotal  time.Duration
	waitCount  int64
}

// NewTokenBucket creates a new token bucket, initially full.
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	// Apply defaults
	if config.BucketSize <= 0 {
		config.BucketSize = 10
	}
	if config.RefillRate <= 0 {
		config.RefillRate = 100
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &TokenBucket{
		config:     config,
		tokens:     float64(config.BucketSize),
		lastRefill: time.Now(),
	}
}

// TryAcquire consumes one token if available without blocking.
func (tb *TokenBucket) TryAcquire() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or the wait budget elapses, in
// which case it fails with a RateLimitError. Waits are computed from the
// deterministic time-to-next-token and re-checked on wake, since concurrent
// acquirers may race for the same token.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	start := time.Now()
	deadline := start.Add(tb.config.MaxWait)

	for {
		if tb.TryAcquire() {
			if waited := time.Since(start); waited > 0 {
				tb.recordWait(waited)
			}
			return nil
		}

		wait := tb.TimeUntilNextToken()
		if wait <= 0 {
			// A token arrived between the failed TryAcquire and now.
			wait = time.Millisecond
		}

		if time.Now().Add(wait).After(deadline) {
			tb.mu.Lock()
			tb.throttled++
			tokens := tb.tokens
			tb.mu.Unlock()
			return &RateLimitError{Tokens: tokens, RefillIn: wait}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens returns the number of tokens currently available.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	return tb.tokens
}

// TimeUntilNextToken returns how long until at least one token is available.
// Zero when a token is already available.
func (tb *TokenBucket) TimeUntilNextToken() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		return 0
	}
	missing := 1 - tb.tokens
	return time.Duration(missing / tb.config.RefillRate * float64(time.Second))
}

// Reset refills the bucket to capacity and clears metrics.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = float64(tb.config.BucketSize)
	tb.lastRefill = time.Now()
	tb.throttled = 0
	tb.waitTotal = 0
	tb.waitCount = 0
}

func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.lastRefill = now

	tb.tokens += elapsed.Seconds() * tb.config.RefillRate
	if tb.tokens > float64(tb.config.BucketSize) {
		tb.tokens = float64(tb.config.BucketSize)
	}
}

func (tb *TokenBucket) recordWait(d time.Duration) {
	tb.mu.Lock()
	tb.waitTotal += d
	tb.waitCount++
	tb.mu.Unlock()
}

// Metrics returns current rate limiter metrics.
func (tb *TokenBucket) Metrics() TokenBucketMetrics {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	m := TokenBucketMetrics{
		Tokens:     tb.tokens,
		BucketSize: tb.config.BucketSize,
		Throttled:  tb.throttled,
	}
	if tb.waitCount > 0 {
		m.AvgWait = tb.waitTotal / time.Duration(tb.waitCount)
	}
	return m
}

// TokenBucketMetrics contains rate limiter statistics.
type TokenBucketMetrics struct {
	Tokens     float64
	BucketSize int
	Throttled  int64
	AvgWait    time.Duration
}
