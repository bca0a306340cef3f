package resilience

import (
	"context"
	"testing"
)

func BenchmarkLayer_Execute(b *testing.B) {
	l := New(Config{
		RateLimiter: TokenBucketConfig{BucketSize: 1 << 20, RefillRate: 1 << 20},
		Concurrency: SemaphoreConfig{MaxConcurrent: 1 << 10},
	})
	defer l.StopQueueProcessor()

	ctx := context.Background()
	noop := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.Execute(ctx, "memories:recall", noop); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLayer_ExecuteParallel(b *testing.B) {
	l := New(Config{
		RateLimiter: TokenBucketConfig{BucketSize: 1 << 20, RefillRate: 1 << 20},
		Concurrency: SemaphoreConfig{MaxConcurrent: 1 << 10, QueueSize: 1 << 12},
	})
	defer l.StopQueueProcessor()

	noop := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if err := l.Execute(ctx, "memories:recall", noop); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkTokenBucket_TryAcquire(b *testing.B) {
	tb := NewTokenBucket(TokenBucketConfig{BucketSize: 1 << 20, RefillRate: 1 << 20})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tb.TryAcquire()
	}
}

func BenchmarkClassifier_Priority(b *testing.B) {
	c := DefaultClassifier()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Priority("memories:recall")
	}
}
