package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for memory operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records a memory operation with duration and error status.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordRejection records an operation shed by admission control, tagged
	// with the rejection reason (rate_limited, queue_full, circuit_open, ...).
	RecordRejection(ctx context.Context, meta OpMeta, reason string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter          metric.Meter
	totalCount     metric.Int64Counter
	errorCount     metric.Int64Counter
	rejectionCount metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"memory.op.total",
		metric.WithDescription("Total number of memory operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"memory.op.errors",
		metric.WithDescription("Total number of memory operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	rejectionCount, err := meter.Int64Counter(
		"memory.op.rejections",
		metric.WithDescription("Operations shed by admission control"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"memory.op.duration_ms",
		metric.WithDescription("Memory operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:          meter,
		totalCount:     totalCount,
		errorCount:     errorCount,
		rejectionCount: rejectionCount,
		durationHist:   durationHist,
	}, nil
}

func opAttributes(meta OpMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("op.name", meta.Name),
		attribute.String("op.verb", meta.Verb),
	}
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("op.namespace", meta.Namespace))
	}
	return attrs
}

// RecordOperation records metrics for a memory operation.
func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(opAttributes(meta)...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordRejection records an admission-control rejection.
func (m *metricsImpl) RecordRejection(ctx context.Context, meta OpMeta, reason string) {
	attrs := append(opAttributes(meta), attribute.String("reject.reason", reason))
	m.rejectionCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordRejection(ctx context.Context, meta OpMeta, reason string) {}
