// Package observe provides observability primitives for memory operations.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the observer around the resilience
// layer so every admitted, deferred, or rejected operation shows up in
// traces, metrics, and logs.
package observe
