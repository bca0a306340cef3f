package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Layer composes the token bucket, semaphore, priority queue, and circuit
// breaker into a single execution pipeline. Every outgoing SDK operation
// passes through Execute before reaching the backend.
//
// Pipeline: classify priority, acquire a rate-limit token, check the
// breaker (queueing deferred work when it is open), acquire a concurrency
// permit, run the operation through the breaker, release the permit on every
// exit path.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use by many callers.
// - Ownership: the layer never mutates primitive state directly, only
//   through each primitive's public operations.
type Layer struct {
	config     Config
	classifier *Classifier
	limiter    *TokenBucket
	sem        *Semaphore
	queue      *PriorityQueue
	breaker    *CircuitBreaker
	logger     Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a layer and starts its background queue processor.
func New(config Config) *Layer {
	config.applyDefaults()

	l := &Layer{
		config:     config,
		classifier: config.Classifier,
		limiter:    NewTokenBucket(config.RateLimiter),
		sem:        NewSemaphore(config.Concurrency),
		queue:      NewPriorityQueue(config.Queue),
		breaker:    NewCircuitBreaker(config.CircuitBreaker),
		logger:     config.Logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go l.drainLoop()
	return l
}

// Execute runs the operation under full admission control. Operation names
// follow the "<namespace>:<verb>" convention and drive priority
// classification; the layer never inspects what the operation does.
//
// When the circuit is open the request is not failed: it is enqueued by
// priority and Execute blocks until the background drain loop re-attempts it
// once the breaker admits traffic again (bounded by MaxQueuedAge and the
// caller's context). Set FailFastWhenOpen to get a CircuitOpenError instead.
func (l *Layer) Execute(ctx context.Context, operationName string, op Operation) error {
	if l.config.Disabled {
		return op(ctx)
	}

	priority := l.classifier.Priority(operationName)

	if err := l.limiter.Acquire(ctx); err != nil {
		return err
	}

	if !l.breaker.AllowsExecution() {
		return l.deferOrReject(ctx, operationName, priority, op)
	}

	err := l.runGuarded(ctx, op)
	if err != nil && errors.Is(err, ErrCircuitOpen) {
		// The breaker opened between the admission check and execution.
		return l.deferOrReject(ctx, operationName, priority, op)
	}
	return err
}

// runGuarded acquires a concurrency permit, runs the operation through the
// breaker, and releases the permit on every exit path.
func (l *Layer) runGuarded(ctx context.Context, op Operation) error {
	permit, err := l.sem.Acquire(ctx)
	if err != nil {
		return err
	}
	defer permit.Release()

	return l.breaker.Execute(ctx, op)
}

func (l *Layer) deferOrReject(ctx context.Context, operationName string, priority Priority, op Operation) error {
	if l.config.FailFastWhenOpen {
		return &CircuitOpenError{RetryAfter: l.breaker.TimeUntilClose()}
	}

	req := NewQueuedRequest(ctx, operationName, priority, op)
	if err := l.queue.Enqueue(req); err != nil {
		return err
	}

	l.logger.Debug(ctx, "operation deferred while circuit open",
		Field{Key: "operation", Value: operationName},
		Field{Key: "priority", Value: priority.String()},
		Field{Key: "request_id", Value: req.ID})

	select {
	case err := <-req.Done():
		return err

	case <-ctx.Done():
		if l.queue.Cancel(req.ID) {
			return ctx.Err()
		}
		// Already dequeued and executing; the outcome is imminent.
		return <-req.Done()

	case <-l.stop:
		if l.queue.Cancel(req.ID) {
			return ErrLayerStopped
		}
		return <-req.Done()
	}
}

// drainLoop is the single dequeuer. On each tick it evicts expired requests,
// then re-submits queued work for as long as the breaker admits traffic and
// the semaphore has spare capacity. Each dequeued operation runs in its own
// goroutine so one slow operation cannot stall the drain.
func (l *Layer) drainLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if n := l.queue.RemoveExpired(l.config.MaxQueuedAge); n > 0 {
				l.logger.Warn(context.Background(), "expired queued requests evicted",
					Field{Key: "count", Value: n},
					Field{Key: "max_age", Value: l.config.MaxQueuedAge.String()})
			}
			l.drainOnce()
		}
	}
}

func (l *Layer) drainOnce() {
	for l.breaker.AllowsExecution() && l.sem.AvailableCount() > 0 {
		req := l.queue.Dequeue()
		if req == nil {
			return
		}

		if err := req.Context().Err(); err != nil {
			req.complete(err)
			continue
		}

		permit := l.sem.TryAcquire()
		if permit == nil {
			// Capacity raced away between the check and the dequeue.
			if !l.queue.Requeue(req) {
				req.complete(&QueueFullError{Priority: req.Priority, Size: l.queue.limitFor(req.Priority)})
			}
			return
		}

		go l.runDeferred(req, permit)
	}
}

func (l *Layer) runDeferred(req *QueuedRequest, permit *Permit) {
	defer permit.Release()

	err := l.breaker.Execute(req.Context(), req.Operation)
	if err != nil && errors.Is(err, ErrCircuitOpen) {
		// The breaker closed the admission window again before this request
		// ran. Put it back at the front of its level; expiry bounds how long
		// it can cycle.
		if l.queue.Requeue(req) {
			return
		}
	}
	req.complete(err)
}

// IsHealthy reports whether the circuit breaker considers the backend
// healthy (closed state).
func (l *Layer) IsHealthy() bool {
	if l.config.Disabled {
		return true
	}
	return l.breaker.State() == StateClosed
}

// IsAcceptingRequests reports whether a new Execute call can currently be
// admitted, either directly or through deferred queueing.
func (l *Layer) IsAcceptingRequests() bool {
	if l.config.Disabled {
		return true
	}
	if l.breaker.AllowsExecution() {
		return true
	}
	if l.config.FailFastWhenOpen {
		return false
	}
	return l.queue.HasCapacity(PriorityNormal)
}

// Metrics returns an aggregate snapshot across all four primitives.
func (l *Layer) Metrics() Metrics {
	return Metrics{
		RateLimiter:    l.limiter.Metrics(),
		Concurrency:    l.sem.Metrics(),
		CircuitBreaker: l.breaker.Metrics(),
		Queue:          l.queue.Metrics(),
	}
}

// Reset restores every primitive to its initial state. Pending queued
// requests are rejected with ErrRequestCancelled.
func (l *Layer) Reset() {
	l.limiter.Reset()
	l.sem.Reset()
	l.breaker.Reset()
	l.queue.Clear(nil)
}

// StopQueueProcessor stops the background drain loop and rejects all pending
// deferred requests with ErrLayerStopped. Idempotent; Execute keeps working
// afterwards but open-circuit deferral is no longer drained.
func (l *Layer) StopQueueProcessor() {
	l.stopOnce.Do(func() {
		close(l.stop)
		<-l.done
		l.queue.Clear(ErrLayerStopped)
	})
}

// Metrics is the aggregate snapshot returned by Layer.Metrics.
type Metrics struct {
	RateLimiter    TokenBucketMetrics
	Concurrency    SemaphoreMetrics
	CircuitBreaker CircuitBreakerMetrics
	Queue          QueueMetrics
}

// Do executes fn through the layer and returns its typed result. Deferred
// execution is transparent: the result is delivered once the drained attempt
// completes.
func Do[T any](ctx context.Context, l *Layer, operationName string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Execute(ctx, operationName, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
