package resilience

import "time"

// Preset names a ready-made layer configuration. Presets are immutable
// values: Config returns a fresh copy every call, and constructing a Layer
// from one always creates fresh primitive instances.
type Preset int

const (
	// PresetDefault balances latency and throughput for a single agent.
	PresetDefault Preset = iota
	// PresetRealTimeAgent favors latency: low concurrency, short waits,
	// small queues, a breaker that trips and probes quickly.
	PresetRealTimeAgent
	// PresetBatch favors throughput: high concurrency, deep queues, long
	// waits.
	PresetBatch
	// PresetHiveMode sizes the layer for multi-agent fan-out where many
	// agents share one client.
	PresetHiveMode
	// PresetDisabled is a pass-through with no admission control.
	PresetDisabled
)

// String returns the string representation of the preset.
func (p Preset) String() string {
	switch p {
	case PresetDefault:
		return "default"
	case PresetRealTimeAgent:
		return "realTimeAgent"
	case PresetBatch:
		return "batchProcessing"
	case PresetHiveMode:
		return "hiveMode"
	case PresetDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Config returns the preset's configuration.
func (p Preset) Config() Config {
	switch p {
	case PresetRealTimeAgent:
		return Config{
			RateLimiter: TokenBucketConfig{
				BucketSize: 20,
				RefillRate: 20,
				MaxWait:    250 * time.Millisecond,
			},
			Concurrency: SemaphoreConfig{
				MaxConcurrent:  4,
				QueueSize:      20,
				AcquireTimeout: time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      3,
				SuccessThreshold:      1,
				OpenTimeout:           5 * time.Second,
				HalfOpenMaxConcurrent: 1,
			},
			Queue: QueueConfig{
				MaxSize: QueueSizes{Critical: 20, High: 50, Normal: 50, Low: 100, Background: 100},
			},
			DrainInterval: 50 * time.Millisecond,
			MaxQueuedAge:  10 * time.Second,
		}

	case PresetBatch:
		return Config{
			RateLimiter: TokenBucketConfig{
				BucketSize: 200,
				RefillRate: 200,
				MaxWait:    10 * time.Second,
			},
			Concurrency: SemaphoreConfig{
				MaxConcurrent:  50,
				QueueSize:      500,
				AcquireTimeout: 30 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      10,
				SuccessThreshold:      3,
				OpenTimeout:           30 * time.Second,
				HalfOpenMaxConcurrent: 5,
			},
			Queue: QueueConfig{
				MaxSize: QueueSizes{Critical: 100, High: 200, Normal: 500, Low: 1000, Background: 2000},
			},
			MaxQueuedAge: 2 * time.Minute,
		}

	case PresetHiveMode:
		return Config{
			RateLimiter: TokenBucketConfig{
				BucketSize: 500,
				RefillRate: 1000,
				MaxWait:    5 * time.Second,
			},
			Concurrency: SemaphoreConfig{
				MaxConcurrent:  200,
				QueueSize:      2000,
				AcquireTimeout: 15 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      20,
				SuccessThreshold:      5,
				OpenTimeout:           15 * time.Second,
				HalfOpenMaxConcurrent: 10,
			},
			Queue: QueueConfig{
				MaxSize: QueueSizes{Critical: 200, High: 500, Normal: 1000, Low: 2000, Background: 5000},
			},
			MaxQueuedAge: time.Minute,
		}

	case PresetDisabled:
		return Config{Disabled: true}

	default:
		return Config{
			RateLimiter: TokenBucketConfig{
				BucketSize: 100,
				RefillRate: 50,
				MaxWait:    time.Second,
			},
			Concurrency: SemaphoreConfig{
				MaxConcurrent:  10,
				QueueSize:      100,
				AcquireTimeout: 5 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				SuccessThreshold:      2,
				OpenTimeout:           30 * time.Second,
				HalfOpenMaxConcurrent: 2,
			},
		}
	}
}

// NewFromPreset creates a layer from a preset.
func NewFromPreset(p Preset) *Layer {
	return New(p.Config())
}

// PlanTier is the backend deployment tier the host application runs against.
// It is injected explicitly at construction time; the layer never inspects
// the environment.
type PlanTier int

const (
	// PlanStarter is the free tier with the tightest resource ceilings.
	PlanStarter PlanTier = iota
	// PlanPro is the standard paid tier.
	PlanPro
	// PlanScale is the high-volume tier.
	PlanScale
	// PlanEnterprise has dedicated backend capacity.
	PlanEnterprise
)

// String returns the string representation of the plan tier.
func (t PlanTier) String() string {
	switch t {
	case PlanStarter:
		return "starter"
	case PlanPro:
		return "pro"
	case PlanScale:
		return "scale"
	case PlanEnterprise:
		return "enterprise"
	default:
		return "unknown"
	}
}

// ConfigForPlan returns a configuration whose concurrency and rate ceilings
// match the backend's known per-tier limits, so a well-behaved client never
// trips server-side throttling under normal load.
func ConfigForPlan(tier PlanTier) Config {
	cfg := PresetDefault.Config()

	switch tier {
	case PlanStarter:
		cfg.RateLimiter.BucketSize = 10
		cfg.RateLimiter.RefillRate = 10
		cfg.Concurrency.MaxConcurrent = 2
		cfg.Concurrency.QueueSize = 20
	case PlanPro:
		cfg.RateLimiter.BucketSize = 50
		cfg.RateLimiter.RefillRate = 50
		cfg.Concurrency.MaxConcurrent = 10
		cfg.Concurrency.QueueSize = 100
	case PlanScale:
		cfg.RateLimiter.BucketSize = 200
		cfg.RateLimiter.RefillRate = 200
		cfg.Concurrency.MaxConcurrent = 50
		cfg.Concurrency.QueueSize = 500
	case PlanEnterprise:
		cfg.RateLimiter.BucketSize = 1000
		cfg.RateLimiter.RefillRate = 1000
		cfg.Concurrency.MaxConcurrent = 200
		cfg.Concurrency.QueueSize = 2000
	}

	return cfg
}
