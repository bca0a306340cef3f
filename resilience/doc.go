// Package resilience provides admission control and overload protection for
// every outgoing SDK operation.
//
// The package coordinates four independent primitives into one execution
// pipeline:
//
//   - TokenBucket: smooths request rate, allowing bursts up to a fixed
//     capacity with continuous refill.
//
//   - Semaphore: caps in-flight concurrency with a bounded FIFO wait list
//     and direct permit handoff to the oldest waiter.
//
//   - PriorityQueue: holds deferred work in five bounded FIFO sub-queues
//     with strict precedence from critical down to background.
//
//   - CircuitBreaker: a three-state failure detector that stops sending work
//     to a distressed backend and probes recovery with a bounded number of
//     half-open trials.
//
// A Classifier maps operation names of the form "<namespace>:<verb>" to
// priority levels, and the Layer orchestrates the whole pipeline behind a
// single Execute entry point.
//
// # Usage
//
//	layer := resilience.New(resilience.Config{
//	    RateLimiter:    resilience.TokenBucketConfig{BucketSize: 100, RefillRate: 50},
//	    Concurrency:    resilience.SemaphoreConfig{MaxConcurrent: 10},
//	    CircuitBreaker: resilience.CircuitBreakerConfig{FailureThreshold: 5},
//	})
//	defer layer.StopQueueProcessor()
//
//	err := layer.Execute(ctx, "memories:recall", func(ctx context.Context) error {
//	    return client.Recall(ctx, query)
//	})
//
// When the circuit is open, Execute defers the request onto the priority
// queue instead of failing; a background drain loop re-attempts it once the
// breaker admits traffic again. Operations that cannot tolerate deferral can
// opt into fail-fast behavior with Config.FailFastWhenOpen.
//
// Presets (PresetDefault, PresetRealTimeAgent, PresetBatch, PresetHiveMode,
// PresetDisabled) and ConfigForPlan provide ready-made configurations; both
// return plain Config values the host can adjust before constructing a
// Layer.
package resilience
