package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackendDown = errors.New("connection refused")

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("SuccessThreshold = %d, want 2", cb.config.SuccessThreshold)
	}
	if cb.config.OpenTimeout != 30*time.Second {
		t.Errorf("OpenTimeout = %v, want 30s", cb.config.OpenTimeout)
	}
	if cb.config.HalfOpenMaxConcurrent != 1 {
		t.Errorf("HalfOpenMaxConcurrent = %d, want 1", cb.config.HalfOpenMaxConcurrent)
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute})
	ctx := context.Background()

	fail := func(ctx context.Context) error { return errBackendDown }

	// Two failures keep the circuit closed.
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures state = %v, want closed", i+1, cb.State())
		}
	}

	// The third trips it.
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("after 3 failures state = %v, want open", cb.State())
	}

	// A fourth call fails fast without invoking the operation.
	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() while open error = %v, want ErrCircuitOpen", err)
	}
	if invoked {
		t.Error("operation invoked while circuit open")
	}

	var coe *CircuitOpenError
	if !errors.As(err, &coe) {
		t.Fatalf("error type = %T, want *CircuitOpenError", err)
	}
	if coe.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", coe.RetryAfter)
	}
}

func TestCircuitBreaker_NonSystemFailuresDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	notFound := errors.New("MEMORY_NOT_FOUND")
	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return notFound })
	}

	if cb.State() != StateClosed {
		t.Errorf("state after non-system failures = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ConsecutiveFailuresRequired(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil }) // resets the count
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("state after timeout = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_SuccessThresholdCloses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Millisecond,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	time.Sleep(20 * time.Millisecond)

	// One success is not enough to close.
	if err := cb.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state after 1 success = %v, want half-open", cb.State())
	}

	// The second consecutive success closes the circuit.
	if err := cb.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state after 2 successes = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })

	if cb.State() != StateOpen {
		t.Errorf("state after half-open failure = %v, want open", cb.State())
	}
	// The open timeout restarted.
	if remaining := cb.TimeUntilClose(); remaining <= 0 {
		t.Errorf("TimeUntilClose() = %v, want > 0", remaining)
	}
}

func TestCircuitBreaker_HalfOpenTrialCap(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:      1,
		SuccessThreshold:      2,
		OpenTimeout:           10 * time.Millisecond,
		HalfOpenMaxConcurrent: 1,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	time.Sleep(20 * time.Millisecond)

	release := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- cb.Execute(ctx, func(ctx context.Context) error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	if cb.AllowsExecution() {
		t.Error("AllowsExecution() with trial in flight = true, want false")
	}

	// A second trial beyond the cap is rejected.
	err := cb.Execute(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() beyond trial cap error = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-probeDone; err != nil {
		t.Errorf("probe error = %v", err)
	}
}

func TestCircuitBreaker_ForceOpenForceClose(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{OpenTimeout: time.Hour})
	ctx := context.Background()

	cb.ForceOpen()
	if cb.State() != StateOpen {
		t.Fatalf("state after ForceOpen = %v, want open", cb.State())
	}

	err := cb.Execute(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() after ForceOpen error = %v, want ErrCircuitOpen", err)
	}

	cb.ForceClose()
	if cb.State() != StateClosed {
		t.Fatalf("state after ForceClose = %v, want closed", cb.State())
	}
	if err := cb.Execute(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Execute() after ForceClose error = %v", err)
	}
}

func TestCircuitBreaker_TimeUntilClose(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	if got := cb.TimeUntilClose(); got != 0 {
		t.Errorf("TimeUntilClose() while closed = %v, want 0", got)
	}

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })

	got := cb.TimeUntilClose()
	if got <= 0 || got > time.Minute {
		t.Errorf("TimeUntilClose() = %v, want (0, 1m]", got)
	}
}

func TestCircuitBreaker_LifecycleCallbacks(t *testing.T) {
	var events []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      10 * time.Millisecond,
		OnOpen:           func() { events = append(events, "open") },
		OnHalfOpen:       func() { events = append(events, "half-open") },
		OnClose:          func() { events = append(events, "closed") },
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	time.Sleep(20 * time.Millisecond)
	_ = cb.State() // triggers the lazy half-open transition
	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })

	want := []string{"open", "half-open", "closed"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("state after reset = %v, want closed", cb.State())
	}
	if m := cb.Metrics(); m.TotalFailures != 0 || m.Rejected != 0 {
		t.Errorf("metrics after reset = %+v, want zero counters", m)
	}
}

func TestCircuitBreaker_Metrics(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errBackendDown })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })

	m := cb.Metrics()
	if m.State != StateClosed {
		t.Errorf("State = %v, want closed", m.State)
	}
	if m.TotalFailures != 2 {
		t.Errorf("TotalFailures = %d, want 2", m.TotalFailures)
	}
	if m.TotalSuccesses != 1 {
		t.Errorf("TotalSuccesses = %d, want 1", m.TotalSuccesses)
	}
	if m.Failures != 0 {
		t.Errorf("Failures = %d, want 0 after success reset", m.Failures)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
