package resilience

import (
	"context"
	"sync"
	"time"
)

// SemaphoreConfig configures the concurrency limiter.
type SemaphoreConfig struct {
	// MaxConcurrent is the maximum number of simultaneously held permits.
	// Default: 10
	MaxConcurrent int

	// QueueSize bounds the FIFO wait list. An Acquire that finds the list
	// full fails immediately with a WaitersFullError rather than a timeout.
	// Default: 100
	QueueSize int

	// AcquireTimeout is how long Acquire waits for a permit.
	// Default: 5 seconds
	AcquireTimeout time.Duration

	// Logger receives double-release warnings.
	// Default: NopLogger
	Logger Logger
}

// Permit is a single-use capability to run one operation. Each issued permit
// must be released exactly once; a second release is a logged no-op and does
// not perturb the active count.
type Permit struct {
	sem      *Semaphore
	gen      uint64 // reset generation the permit was issued under
	released bool   // guarded by sem.mu
}

// Release returns the permit. If waiters are queued, ownership transfers
// directly to the oldest waiter without decrementing the active count.
func (p *Permit) Release() {
	p.sem.release(p)
}

type waiter struct {
	grant    chan *Permit // buffered, capacity 1; closed on reset
	enqueued time.Time
}

// Semaphore caps in-flight concurrency with a bounded FIFO wait list.
//
// Contract:
// - Concurrency: safe for concurrent use by any number of goroutines.
// - Ordering: waiters are granted permits strictly in arrival order.
type Semaphore struct {
	config SemaphoreConfig

	mu        sync.Mutex
	gen       uint64
	active    int
	maxActive int
	waiters   []*waiter
	timeouts  int64
	rejected  int64
	doubles   int64
	waitTotal time.Duration
	waitCount int64
}

// NewSemaphore creates a new semaphore.
func NewSemaphore(config SemaphoreConfig) *Semaphore {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = NopLogger{}
	}

	return &Semaphore{config: config}
}

// TryAcquire returns a permit if one is immediately available, else nil.
func (s *Semaphore) TryAcquire() *Permit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryAcquireLocked()
}

func (s *Semaphore) tryAcquireLocked() *Permit {
	if s.active >= s.config.MaxConcurrent {
		return nil
	}
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	return &Permit{sem: s, gen: s.gen}
}

// Acquire returns a permit, waiting up to the configured timeout if none is
// available. When the wait list is full it fails immediately with a
// WaitersFullError; when the timeout elapses it fails with an
// AcquireTimeoutError.
func (s *Semaphore) Acquire(ctx context.Context) (*Permit, error) {
	s.mu.Lock()
	if p := s.tryAcquireLocked(); p != nil {
		s.mu.Unlock()
		return p, nil
	}

	if len(s.waiters) >= s.config.QueueSize {
		s.rejected++
		waiting := len(s.waiters)
		s.mu.Unlock()
		return nil, &WaitersFullError{Waiting: waiting, Limit: s.config.QueueSize}
	}

	w := &waiter{grant: make(chan *Permit, 1), enqueued: time.Now()}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	timer := time.NewTimer(s.config.AcquireTimeout)
	defer timer.Stop()

	select {
	case p, ok := <-w.grant:
		if !ok {
			return nil, ErrSemaphoreReset
		}
		return p, nil

	case <-timer.C:
		if p := s.abandon(w); p != nil {
			// A permit was handed off concurrently with the timeout.
			return p, nil
		}
		s.mu.Lock()
		s.timeouts++
		waiting := len(s.waiters)
		s.mu.Unlock()
		return nil, &AcquireTimeoutError{Timeout: s.config.AcquireTimeout, Waiting: waiting}

	case <-ctx.Done():
		if p := s.abandon(w); p != nil {
			// Too late to refuse; hand the permit straight back.
			p.Release()
		}
		return nil, ctx.Err()
	}
}

// abandon removes w from the wait list. If w was already granted a permit,
// that permit is returned so the caller can use or release it.
func (s *Semaphore) abandon(w *waiter) *Permit {
	s.mu.Lock()
	for i, cand := range s.waiters {
		if cand == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	// w left the list under someone else's lock: either release granted it a
	// permit (sent before the list update became visible) or Reset is closing
	// the channel. The non-blocking receive only misses in the Reset race,
	// where no permit exists to lose.
	select {
	case p, ok := <-w.grant:
		if !ok {
			return nil
		}
		return p
	default:
		return nil
	}
}

func (s *Semaphore) release(p *Permit) {
	s.mu.Lock()

	if p.released {
		s.doubles++
		active := s.active
		s.mu.Unlock()
		s.config.Logger.Warn(context.Background(), "permit released twice",
			Field{Key: "active", Value: active})
		return
	}
	p.released = true

	if p.gen != s.gen {
		// Permit issued before a Reset; the count it belonged to is gone.
		s.mu.Unlock()
		s.config.Logger.Warn(context.Background(), "stale permit released after reset")
		return
	}

	if len(s.waiters) > 0 {
		// Hand the permit to the oldest waiter. Active count is unchanged:
		// ownership transfers rather than being decremented and re-acquired.
		// The send happens under the mutex (the channel is buffered, so it
		// cannot block): a waiter that later misses itself in the list is
		// guaranteed to find its permit already in the channel.
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.waitTotal += time.Since(w.enqueued)
		s.waitCount++
		w.grant <- &Permit{sem: s, gen: s.gen}
		s.mu.Unlock()
		return
	}

	s.active--
	s.mu.Unlock()
}

// ActiveCount returns the number of permits currently held.
func (s *Semaphore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// AvailableCount returns the number of permits immediately available.
func (s *Semaphore) AvailableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.MaxConcurrent - s.active
}

// WaitingCount returns the number of queued acquirers.
func (s *Semaphore) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// Reset releases all state: the active count returns to zero, queued waiters
// fail with ErrSemaphoreReset, and metrics are cleared. Outstanding permits
// become inert; releasing one after a reset is treated as a double release.
func (s *Semaphore) Reset() {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.gen++
	s.active = 0
	s.maxActive = 0
	s.timeouts = 0
	s.rejected = 0
	s.doubles = 0
	s.waitTotal = 0
	s.waitCount = 0
	s.mu.Unlock()

	for _, w := range waiters {
		close(w.grant)
	}
}

// Metrics returns current semaphore metrics.
func (s *Semaphore) Metrics() SemaphoreMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := SemaphoreMetrics{
		Active:         s.active,
		MaxActive:      s.maxActive,
		Available:      s.config.MaxConcurrent - s.active,
		MaxConcurrent:  s.config.MaxConcurrent,
		Waiting:        len(s.waiters),
		Timeouts:       s.timeouts,
		Rejected:       s.rejected,
		DoubleReleases: s.doubles,
	}
	if s.waitCount > 0 {
		m.AvgWait = s.waitTotal / time.Duration(s.waitCount)
	}
	return m
}

// SemaphoreMetrics contains concurrency limiter statistics.
type SemaphoreMetrics struct {
	Active         int
	MaxActive      int
	Available      int
	MaxConcurrent  int
	Waiting        int
	Timeouts       int64
	Rejected       int64
	DoubleReleases int64
	AvgWait        time.Duration
}
