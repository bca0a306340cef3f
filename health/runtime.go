package health

import (
	"context"
	"fmt"
	"runtime"
)

// RuntimeCheckerConfig configures the Go runtime health checker.
type RuntimeCheckerConfig struct {
	// WarningThreshold is the fraction of allocated heap that triggers degraded status.
	// Value should be between 0 and 1. Default: 0.8 (80%)
	WarningThreshold float64

	// CriticalThreshold is the fraction of allocated heap that triggers unhealthy status.
	// Value should be between 0 and 1. Default: 0.95 (95%)
	CriticalThreshold float64

	// MaxAlloc is the maximum expected allocation in bytes.
	// If zero, uses the runtime's obtained-from-OS total as the ceiling.
	// Default: 0 (auto-detect)
	MaxAlloc uint64
}

// RuntimeChecker checks process heap usage. The name avoids "memory" because
// in this codebase that word refers to the backend's stored memories.
type RuntimeChecker struct {
	config RuntimeCheckerConfig
}

// NewRuntimeChecker creates a new runtime health checker.
func NewRuntimeChecker(config RuntimeCheckerConfig) *RuntimeChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold + 0.1
		if config.CriticalThreshold > 1 {
			config.CriticalThreshold = 0.99
		}
	}

	return &RuntimeChecker{config: config}
}

// Name returns the name of this checker.
func (c *RuntimeChecker) Name() string {
	return "runtime"
}

// Check performs the runtime health check.
func (c *RuntimeChecker) Check(ctx context.Context) Result {
	// Check context first
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxAlloc := c.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}

	if maxAlloc == 0 {
		return Healthy("runtime stats unavailable").WithDetails(map[string]any{
			"alloc":       stats.Alloc,
			"total_alloc": stats.TotalAlloc,
			"sys":         stats.Sys,
			"num_gc":      stats.NumGC,
		})
	}

	usageRatio := float64(stats.Alloc) / float64(maxAlloc)

	details := map[string]any{
		"alloc_bytes":    stats.Alloc,
		"alloc_mb":       float64(stats.Alloc) / (1024 * 1024),
		"max_alloc":      maxAlloc,
		"usage_percent":  usageRatio * 100,
		"heap_alloc":     stats.HeapAlloc,
		"heap_sys":       stats.HeapSys,
		"heap_idle":      stats.HeapIdle,
		"heap_in_use":    stats.HeapInuse,
		"heap_released":  stats.HeapReleased,
		"heap_objects":   stats.HeapObjects,
		"stack_in_use":   stats.StackInuse,
		"stack_sys":      stats.StackSys,
		"gc_pause_total": stats.PauseTotalNs,
		"num_gc":         stats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	if usageRatio >= c.config.CriticalThreshold {
		return Unhealthy(
			fmt.Sprintf("heap usage critical: %.1f%%", usageRatio*100),
			ErrCheckFailed,
		).WithDetails(details)
	}

	if usageRatio >= c.config.WarningThreshold {
		return Degraded(
			fmt.Sprintf("heap usage high: %.1f%%", usageRatio*100),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("heap usage normal: %.1f%%", usageRatio*100),
	).WithDetails(details)
}

// ForceGC triggers a garbage collection.
// This is useful for tests or when you want accurate heap stats.
func (c *RuntimeChecker) ForceGC() {
	runtime.GC()
}
