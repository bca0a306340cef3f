package resilience

import (
	"context"
	"errors"
	"time"
)

// backoffDelay returns the delay before retry attempt n (1-based):
// base * 2^(n-1), capped at maxBackoffDelay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		attempt = 32
	}
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoffDelay || delay < 0 {
		delay = maxBackoffDelay
	}
	return delay
}

// maxBackoffDelay caps a single backoff sleep regardless of attempt count.
const maxBackoffDelay = 30 * time.Second

// retryable reports whether a failed execution is worth re-attempting.
// Backpressure errors are not: the layer has already shed the load, and
// retrying would defeat it. Non-system failures are not: the same input
// produces the same outcome. Caller cancellation ends the attempt loop.
func retryable(err error) bool {
	if IsBackpressure(err) {
		return false
	}
	if IsNonSystemFailure(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// ExecuteWithRetry runs the operation through the layer up to maxRetries+1
// times, sleeping base*2^(attempt-1) between attempts (exponential backoff).
func (l *Layer) ExecuteWithRetry(ctx context.Context, operationName string, op Operation, maxRetries int, baseDelay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(baseDelay, attempt)
			l.logger.Debug(ctx, "retrying operation",
				Field{Key: "operation", Value: operationName},
				Field{Key: "attempt", Value: attempt + 1},
				Field{Key: "delay", Value: delay.String()})

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := l.Execute(ctx, operationName, op)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
	}
	return lastErr
}
