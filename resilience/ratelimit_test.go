package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTokenBucket_Defaults(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{})

	if tb.config.BucketSize != 10 {
		t.Errorf("BucketSize = %d, want 10", tb.config.BucketSize)
	}
	if tb.config.RefillRate != 100 {
		t.Errorf("RefillRate = %f, want 100", tb.config.RefillRate)
	}
	if tb.config.MaxWait != time.Second {
		t.Errorf("MaxWait = %v, want 1s", tb.config.MaxWait)
	}
}

func TestTokenBucket_Burst(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 5, RefillRate: 1})

	// A full bucket allows BucketSize acquisitions back to back.
	for i := 0; i < 5; i++ {
		if !tb.TryAcquire() {
			t.Fatalf("TryAcquire() #%d = false, want true", i+1)
		}
	}

	// The next one fails with no tokens left.
	if tb.TryAcquire() {
		t.Error("TryAcquire() #6 = true, want false")
	}
}

func TestTokenBucket_NoUnboundedRefill(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 3, RefillRate: 1000})

	// Even after idle time the bucket never exceeds capacity.
	time.Sleep(20 * time.Millisecond)

	if tokens := tb.Tokens(); tokens > 3 {
		t.Errorf("Tokens() = %f, want <= 3", tokens)
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 2, RefillRate: 100})

	for i := 0; i < 2; i++ {
		if !tb.TryAcquire() {
			t.Fatalf("TryAcquire() #%d = false, want true", i+1)
		}
	}
	if tb.TryAcquire() {
		t.Fatal("TryAcquire() on empty bucket = true, want false")
	}

	// 100 tokens/s refills one token in 10ms.
	time.Sleep(30 * time.Millisecond)

	if !tb.TryAcquire() {
		t.Error("TryAcquire() after refill = false, want true")
	}
}

func TestTokenBucket_AcquireWaits(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 1, RefillRate: 100, MaxWait: 500 * time.Millisecond})

	if !tb.TryAcquire() {
		t.Fatal("TryAcquire() = false, want true")
	}

	start := time.Now()
	if err := tb.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if waited := time.Since(start); waited < 5*time.Millisecond {
		t.Errorf("Acquire() waited %v, want >= 5ms", waited)
	}
}

func TestTokenBucket_AcquireTimeout(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 1, RefillRate: 0.5, MaxWait: 20 * time.Millisecond})

	if !tb.TryAcquire() {
		t.Fatal("TryAcquire() = false, want true")
	}

	// The next token is ~2s away, far beyond the wait budget.
	err := tb.Acquire(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Acquire() error = %v, want ErrRateLimited", err)
	}

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("Acquire() error type = %T, want *RateLimitError", err)
	}
	if rle.RefillIn <= 0 {
		t.Errorf("RefillIn = %v, want > 0", rle.RefillIn)
	}
}

func TestTokenBucket_AcquireContextCancelled(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 1, RefillRate: 1, MaxWait: 5 * time.Second})

	if !tb.TryAcquire() {
		t.Fatal("TryAcquire() = false, want true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := tb.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestTokenBucket_TimeUntilNextToken(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 1, RefillRate: 10})

	if wait := tb.TimeUntilNextToken(); wait != 0 {
		t.Errorf("TimeUntilNextToken() with tokens = %v, want 0", wait)
	}

	if !tb.TryAcquire() {
		t.Fatal("TryAcquire() = false, want true")
	}

	// One token at 10/s is at most 100ms away.
	wait := tb.TimeUntilNextToken()
	if wait <= 0 || wait > 100*time.Millisecond {
		t.Errorf("TimeUntilNextToken() = %v, want (0, 100ms]", wait)
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 2, RefillRate: 0.1})

	for i := 0; i < 2; i++ {
		tb.TryAcquire()
	}
	if tb.TryAcquire() {
		t.Fatal("TryAcquire() on empty bucket = true, want false")
	}

	tb.Reset()

	if !tb.TryAcquire() {
		t.Error("TryAcquire() after reset = false, want true")
	}
}

func TestTokenBucket_Metrics(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 1, RefillRate: 0.5, MaxWait: 10 * time.Millisecond})

	tb.TryAcquire()
	_ = tb.Acquire(context.Background()) // times out, counted as throttled

	m := tb.Metrics()
	if m.Throttled != 1 {
		t.Errorf("Metrics().Throttled = %d, want 1", m.Throttled)
	}
	if m.BucketSize != 1 {
		t.Errorf("Metrics().BucketSize = %d, want 1", m.BucketSize)
	}
	if m.Tokens > 1 {
		t.Errorf("Metrics().Tokens = %f, want <= 1", m.Tokens)
	}
}
