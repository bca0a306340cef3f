package observe

import (
	"context"
	"errors"
	"time"

	"github.com/recallstack/recall-go/resilience"
)

// Middleware wraps resilience-layer execution with observability (tracing,
// metrics, logging). Rejections by admission control are recorded separately
// from backend failures so dashboards can tell load shedding from outages.
//
// Contract:
//   - Concurrency: Execute is safe for concurrent use.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the layer are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Execute runs the operation through the layer inside a span, recording
// duration, outcome, and any admission rejection.
func (m *Middleware) Execute(ctx context.Context, layer *resilience.Layer, operationName string, op resilience.Operation) error {
	meta := NewOpMeta(operationName)

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := layer.Execute(ctx, operationName, op)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)

	if reason := rejectionReason(err); reason != "" {
		m.metrics.RecordRejection(ctx, meta, reason)
	}
	m.metrics.RecordOperation(ctx, meta, duration, err)

	opLogger := m.logger.WithOp(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}

	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		opLogger.Error(ctx, "memory operation failed", fields...)
	} else {
		opLogger.Info(ctx, "memory operation completed", fields...)
	}

	return err
}

// rejectionReason maps an admission-control error to a metric label.
// Empty for errors that are not backpressure.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, resilience.ErrAcquireTimeout):
		return "acquire_timeout"
	case errors.Is(err, resilience.ErrWaitersFull):
		return "waiters_full"
	case errors.Is(err, resilience.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return ""
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}

// resilienceLogger adapts an observe Logger to the resilience package's
// logger interface so layer diagnostics flow through the same sink.
type resilienceLogger struct {
	logger Logger
}

// ForResilience adapts a Logger for use as a resilience.Config Logger.
func ForResilience(logger Logger) resilience.Logger {
	return &resilienceLogger{logger: logger}
}

func (a *resilienceLogger) Info(ctx context.Context, msg string, fields ...resilience.Field) {
	a.logger.Info(ctx, msg, convertFields(fields)...)
}

func (a *resilienceLogger) Warn(ctx context.Context, msg string, fields ...resilience.Field) {
	a.logger.Warn(ctx, msg, convertFields(fields)...)
}

func (a *resilienceLogger) Error(ctx context.Context, msg string, fields ...resilience.Field) {
	a.logger.Error(ctx, msg, convertFields(fields)...)
}

func (a *resilienceLogger) Debug(ctx context.Context, msg string, fields ...resilience.Field) {
	a.logger.Debug(ctx, msg, convertFields(fields)...)
}

func convertFields(fields []resilience.Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Key: f.Key, Value: f.Value}
	}
	return out
}
