// Package health provides health checking primitives for the memory client.
//
// This package implements a generic health checking framework used to monitor
// the components a client host cares about: the resilience layer guarding the
// backend, the Go runtime, and anything else the host registers. It provides
// interfaces for defining health checks, aggregating results from multiple
// checkers, and exposing health status via HTTP endpoints.
//
// # Core Concepts
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy.
//
// # Basic Usage
//
//	// Watch the resilience layer guarding the backend
//	layerCheck := health.NewLayerChecker("backend", layer)
//
//	// Check health
//	result := layerCheck.Check(ctx)
//	if result.Status == health.StatusUnhealthy {
//	    log.Printf("Backend down: %s", result.Message)
//	}
//
// # Aggregating Health Checks
//
// Use Aggregator to combine multiple health checks into a single composite check:
//
//	agg := health.NewAggregator()
//	agg.Register("backend", layerChecker)
//	agg.Register("runtime", runtimeChecker)
//
//	// Check all components
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe with component checks
//	http.Handle("/readyz", health.ReadinessHandler(aggregator))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(aggregator))
package health
