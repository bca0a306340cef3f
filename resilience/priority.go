package resilience

import "strings"

// Priority orders requests for queueing and draining. Lower values are more
// urgent; PriorityCritical drains first.
type Priority int

const (
	// PriorityCritical is reserved for destructive or compliance-sensitive
	// operations that must never be silently dropped.
	PriorityCritical Priority = iota
	// PriorityHigh is for interactive, latency-sensitive operations.
	PriorityHigh
	// PriorityNormal is the default for unclassified operations.
	PriorityNormal
	// PriorityLow is for deferrable housekeeping operations.
	PriorityLow
	// PriorityBackground is for bulk operations that tolerate long deferral.
	PriorityBackground
)

const numPriorities = 5

// priorityLevels lists all priorities in drain order.
var priorityLevels = [numPriorities]Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityNormal,
	PriorityLow,
	PriorityBackground,
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool {
	return p >= PriorityCritical && p <= PriorityBackground
}

// Classifier maps operation names to priorities.
//
// Operation names follow the "<namespace>:<verb>" convention. Rules are
// either exact ("memories:delete") or namespace wildcards ("graphSync:*").
// Exact rules win over wildcards; unmapped names resolve to PriorityNormal.
//
// Contract:
// - Concurrency: a Classifier is immutable after construction and safe for
//   concurrent use.
type Classifier struct {
	exact    map[string]Priority
	wildcard map[string]Priority
	fallback Priority
}

// NewClassifier builds a classifier from a rule table. Keys ending in ":*"
// become namespace wildcards.
func NewClassifier(rules map[string]Priority) *Classifier {
	c := &Classifier{
		exact:    make(map[string]Priority),
		wildcard: make(map[string]Priority),
		fallback: PriorityNormal,
	}
	for name, p := range rules {
		if !p.valid() {
			continue
		}
		if ns, ok := strings.CutSuffix(name, ":*"); ok {
			c.wildcard[ns] = p
			continue
		}
		c.exact[name] = p
	}
	return c
}

// Priority resolves the priority for an operation name.
func (c *Classifier) Priority(operationName string) Priority {
	if p, ok := c.exact[operationName]; ok {
		return p
	}
	if i := strings.IndexByte(operationName, ':'); i > 0 {
		if p, ok := c.wildcard[operationName[:i]]; ok {
			return p
		}
	}
	return c.fallback
}

// IsCritical reports whether the operation resolves to PriorityCritical.
func (c *Classifier) IsCritical(operationName string) bool {
	return c.Priority(operationName) == PriorityCritical
}

// DefaultClassifier returns the rule table for the SDK's built-in operations.
// Deletion and compliance operations are critical: they back retention and
// erasure obligations and must not sit behind bulk traffic. Sync and export
// tolerate deferral and must not compete with interactive recall.
func DefaultClassifier() *Classifier {
	return NewClassifier(map[string]Priority{
		"memories:delete":    PriorityCritical,
		"memories:purge":     PriorityCritical,
		"users:delete":       PriorityCritical,
		"compliance:*":       PriorityCritical,
		"memories:remember":  PriorityHigh,
		"memories:recall":    PriorityHigh,
		"memories:search":    PriorityHigh,
		"memories:update":    PriorityNormal,
		"sessions:*":         PriorityNormal,
		"stats:*":            PriorityLow,
		"memories:reinforce": PriorityLow,
		"memories:export":    PriorityBackground,
		"graphSync:*":        PriorityBackground,
	})
}
