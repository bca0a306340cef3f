package resilience

import "context"

// Logger receives diagnostic events from the resilience primitives: circuit
// transitions, double permit releases, queue evictions. It mirrors the shape
// of observe.Logger so hosts can bridge the two with a one-line adapter.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// NopLogger discards all log events. It is the default for every primitive.
type NopLogger struct{}

func (NopLogger) Info(ctx context.Context, msg string, fields ...Field)  {}
func (NopLogger) Warn(ctx context.Context, msg string, fields ...Field)  {}
func (NopLogger) Error(ctx context.Context, msg string, fields ...Field) {}
func (NopLogger) Debug(ctx context.Context, msg string, fields ...Field) {}

var _ Logger = NopLogger{}
