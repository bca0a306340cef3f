package health

import (
	"context"
	"fmt"

	"github.com/recallstack/recall-go/resilience"
)

// LayerCheckerConfig configures the resilience layer health checker.
type LayerCheckerConfig struct {
	// QueueDepthWarning marks the layer degraded when at least this many
	// deferred requests are waiting for the backend to recover.
	// Default: 100
	QueueDepthWarning int
}

// LayerChecker reports the health of a resilience layer. An open circuit
// means the backend is considered down; a probing circuit or a deep deferred
// queue means the client is working through a disruption.
type LayerChecker struct {
	name   string
	layer  *resilience.Layer
	config LayerCheckerConfig
}

// NewLayerChecker creates a health checker for a resilience layer.
func NewLayerChecker(name string, layer *resilience.Layer, config ...LayerCheckerConfig) *LayerChecker {
	cfg := LayerCheckerConfig{QueueDepthWarning: 100}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.QueueDepthWarning <= 0 {
			cfg.QueueDepthWarning = 100
		}
	}

	return &LayerChecker{
		name:   name,
		layer:  layer,
		config: cfg,
	}
}

// Name returns the name of this checker.
func (c *LayerChecker) Name() string {
	return c.name
}

// Check inspects the layer's circuit state and deferred queue depth.
func (c *LayerChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	m := c.layer.Metrics()

	details := map[string]any{
		"circuit_state":  m.CircuitBreaker.State.String(),
		"circuit_opens":  m.CircuitBreaker.OpenCount,
		"queue_size":     m.Queue.Size,
		"queue_oldest":   m.Queue.OldestAge.String(),
		"active":         m.Concurrency.Active,
		"max_concurrent": m.Concurrency.MaxConcurrent,
		"tokens":         m.RateLimiter.Tokens,
		"throttled":      m.RateLimiter.Throttled,
	}

	switch m.CircuitBreaker.State {
	case resilience.StateOpen:
		return Unhealthy("circuit open, backend considered down", ErrCheckFailed).
			WithDetails(details)

	case resilience.StateHalfOpen:
		return Degraded("circuit probing backend recovery").
			WithDetails(details)
	}

	if m.Queue.Size >= c.config.QueueDepthWarning {
		return Degraded(
			fmt.Sprintf("deferred queue deep: %d requests waiting", m.Queue.Size),
		).WithDetails(details)
	}

	return Healthy("accepting requests").WithDetails(details)
}
