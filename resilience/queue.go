package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is an opaque unit of asynchronous work. The layer never inspects
// what an operation does; the operation name is its only coupling point.
type Operation func(context.Context) error

// QueuedRequest is a deferred operation held by the PriorityQueue until the
// drain loop re-attempts it. The queue owns the request while it is enqueued;
// ownership transfers to the executing goroutine on dequeue. The outcome is
// delivered exactly once through Done.
type QueuedRequest struct {
	// ID uniquely identifies the request for cancellation.
	ID string

	// OperationName is the "<namespace>:<verb>" name the request was
	// submitted under.
	OperationName string

	// Priority is the resolved priority level.
	Priority Priority

	// Operation is the deferred work.
	Operation Operation

	// QueuedAt is when the request first entered the queue.
	QueuedAt time.Time

	// Attempts counts how many times the request has been enqueued.
	Attempts int

	ctx    context.Context
	result chan error
	once   sync.Once
}

// NewQueuedRequest creates a request ready for enqueueing. The context is the
// submitting caller's; drained executions run under it so caller cancellation
// still propagates to deferred work.
func NewQueuedRequest(ctx context.Context, name string, priority Priority, op Operation) *QueuedRequest {
	if ctx == nil {
		ctx = context.Background()
	}
	return &QueuedRequest{
		ID:            uuid.NewString(),
		OperationName: name,
		Priority:      priority,
		Operation:     op,
		QueuedAt:      time.Now(),
		ctx:           ctx,
		result:        make(chan error, 1),
	}
}

// Done returns the channel the final outcome is delivered on. It receives
// exactly one value: nil on success or the terminal error.
func (r *QueuedRequest) Done() <-chan error {
	return r.result
}

// Context returns the submitting caller's context.
func (r *QueuedRequest) Context() context.Context {
	return r.ctx
}

// complete resolves or rejects the request. Safe to call more than once;
// only the first outcome is delivered.
func (r *QueuedRequest) complete(err error) {
	r.once.Do(func() { r.result <- err })
}

// QueueSizes bounds each priority sub-queue. Urgent levels are sized small
// because they drain first and should never accumulate; background levels
// absorb bulk traffic.
type QueueSizes struct {
	// Default: 50
	Critical int
	// Default: 100
	High int
	// Default: 200
	Normal int
	// Default: 500
	Low int
	// Default: 1000
	Background int
}

// QueueConfig configures the priority queue.
type QueueConfig struct {
	// MaxSize bounds each priority sub-queue. Zero fields use defaults.
	MaxSize QueueSizes
}

// PriorityQueue holds deferred requests in five bounded FIFO sub-queues, one
// per priority level. Dequeue scans from critical to background and pops the
// head of the first non-empty sub-queue: strict priority ordering with FIFO
// fairness within a level. Starvation of lower levels under sustained
// critical load is a deliberate trade-off.
type PriorityQueue struct {
	mu        sync.Mutex
	queues    [numPriorities][]*QueuedRequest
	limits    [numPriorities]int
	enqueued  int64
	dequeued  int64
	expired   int64
	cancelled int64
}

// NewPriorityQueue creates an empty priority queue.
func NewPriorityQueue(config QueueConfig) *PriorityQueue {
	sizes := config.MaxSize
	if sizes.Critical <= 0 {
		sizes.Critical = 50
	}
	if sizes.High <= 0 {
		sizes.High = 100
	}
	if sizes.Normal <= 0 {
		sizes.Normal = 200
	}
	if sizes.Low <= 0 {
		sizes.Low = 500
	}
	if sizes.Background <= 0 {
		sizes.Background = 1000
	}

	q := &PriorityQueue{}
	q.limits[PriorityCritical] = sizes.Critical
	q.limits[PriorityHigh] = sizes.High
	q.limits[PriorityNormal] = sizes.Normal
	q.limits[PriorityLow] = sizes.Low
	q.limits[PriorityBackground] = sizes.Background
	return q
}

// Enqueue adds a request to its priority's sub-queue. It fails with a
// QueueFullError when that sub-queue is at capacity.
func (q *PriorityQueue) Enqueue(req *QueuedRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := req.Priority
	if !p.valid() {
		p = PriorityNormal
		req.Priority = p
	}
	if len(q.queues[p]) >= q.limits[p] {
		return &QueueFullError{Priority: p, Size: q.limits[p]}
	}

	req.Attempts++
	q.queues[p] = append(q.queues[p], req)
	q.enqueued++
	return nil
}

// TryEnqueue is the non-failing variant of Enqueue.
func (q *PriorityQueue) TryEnqueue(req *QueuedRequest) bool {
	return q.Enqueue(req) == nil
}

// Requeue puts a dequeued request back at the front of its sub-queue so it
// keeps its FIFO position relative to later arrivals. A put-back is the same
// attempt, not a new submission: Attempts is left alone and the dequeue is
// undone in the counters. It fails when the sub-queue refilled to capacity
// while the request was out.
func (q *PriorityQueue) Requeue(req *QueuedRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := req.Priority
	if !p.valid() || len(q.queues[p]) >= q.limits[p] {
		return false
	}
	q.queues[p] = append([]*QueuedRequest{req}, q.queues[p]...)
	q.dequeued--
	return true
}

// Dequeue removes and returns the highest-priority request, or nil when the
// queue is empty.
func (q *PriorityQueue) Dequeue() *QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range priorityLevels {
		if len(q.queues[p]) == 0 {
			continue
		}
		req := q.queues[p][0]
		q.queues[p][0] = nil
		q.queues[p] = q.queues[p][1:]
		q.dequeued++
		return req
	}
	return nil
}

// Peek returns the request Dequeue would return, without removing it.
func (q *PriorityQueue) Peek() *QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range priorityLevels {
		if len(q.queues[p]) > 0 {
			return q.queues[p][0]
		}
	}
	return nil
}

// IsEmpty reports whether no requests are queued at any level.
func (q *PriorityQueue) IsEmpty() bool {
	return q.Size() == 0
}

// HasCapacity reports whether the given priority's sub-queue can accept
// another request.
func (q *PriorityQueue) HasCapacity(p Priority) bool {
	if !p.valid() {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[p]) < q.limits[p]
}

// Size returns the total number of queued requests.
func (q *PriorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, p := range priorityLevels {
		total += len(q.queues[p])
	}
	return total
}

// SizeByPriority returns the number of queued requests per level.
func (q *PriorityQueue) SizeByPriority() map[Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	sizes := make(map[Priority]int, numPriorities)
	for _, p := range priorityLevels {
		sizes[p] = len(q.queues[p])
	}
	return sizes
}

// OldestAge returns the age of the oldest queued request, zero when empty.
func (q *PriorityQueue) OldestAge() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	var oldest time.Time
	for _, p := range priorityLevels {
		for _, req := range q.queues[p] {
			if oldest.IsZero() || req.QueuedAt.Before(oldest) {
				oldest = req.QueuedAt
			}
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return time.Since(oldest)
}

// RemoveExpired evicts requests older than maxAge from every sub-queue,
// rejecting each with an error that wraps ErrRequestExpired. It returns the
// number of evicted requests. This bounds staleness when the circuit stays
// open for a long time.
func (q *PriorityQueue) RemoveExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	q.mu.Lock()
	var evicted []*QueuedRequest
	for _, p := range priorityLevels {
		kept := q.queues[p][:0]
		for _, req := range q.queues[p] {
			if req.QueuedAt.Before(cutoff) {
				evicted = append(evicted, req)
				continue
			}
			kept = append(kept, req)
		}
		for i := len(kept); i < len(q.queues[p]); i++ {
			q.queues[p][i] = nil
		}
		q.queues[p] = kept
	}
	q.expired += int64(len(evicted))
	q.mu.Unlock()

	for _, req := range evicted {
		req.complete(fmt.Errorf("%w: %s queued for %s (max %s)",
			ErrRequestExpired, req.OperationName, time.Since(req.QueuedAt).Round(time.Millisecond), maxAge))
	}
	return len(evicted)
}

// Cancel rejects and removes the request with the given id. It returns false
// when no queued request has that id.
func (q *PriorityQueue) Cancel(id string) bool {
	q.mu.Lock()
	var found *QueuedRequest
	for _, p := range priorityLevels {
		for i, req := range q.queues[p] {
			if req.ID == id {
				found = req
				q.queues[p] = append(q.queues[p][:i], q.queues[p][i+1:]...)
				q.cancelled++
				break
			}
		}
		if found != nil {
			break
		}
	}
	q.mu.Unlock()

	if found == nil {
		return false
	}
	found.complete(fmt.Errorf("%w: %s", ErrRequestCancelled, found.OperationName))
	return true
}

// Clear rejects every pending request with the given reason and empties the
// queue. A nil reason rejects with ErrRequestCancelled.
func (q *PriorityQueue) Clear(reason error) int {
	if reason == nil {
		reason = ErrRequestCancelled
	}

	q.mu.Lock()
	var drained []*QueuedRequest
	for _, p := range priorityLevels {
		drained = append(drained, q.queues[p]...)
		q.queues[p] = nil
	}
	q.cancelled += int64(len(drained))
	q.mu.Unlock()

	for _, req := range drained {
		req.complete(reason)
	}
	return len(drained)
}

func (q *PriorityQueue) limitFor(p Priority) int {
	if !p.valid() {
		return 0
	}
	return q.limits[p]
}

// Metrics returns current queue metrics.
func (q *PriorityQueue) Metrics() QueueMetrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := QueueMetrics{
		SizeByPriority: make(map[Priority]int, numPriorities),
		Enqueued:       q.enqueued,
		Dequeued:       q.dequeued,
		Expired:        q.expired,
		Cancelled:      q.cancelled,
	}
	var oldest time.Time
	for _, p := range priorityLevels {
		m.SizeByPriority[p] = len(q.queues[p])
		m.Size += len(q.queues[p])
		for _, req := range q.queues[p] {
			if oldest.IsZero() || req.QueuedAt.Before(oldest) {
				oldest = req.QueuedAt
			}
		}
	}
	if !oldest.IsZero() {
		m.OldestAge = time.Since(oldest)
	}
	return m
}

// ResetMetrics clears the cumulative counters without touching queued
// requests.
func (q *PriorityQueue) ResetMetrics() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = 0
	q.dequeued = 0
	q.expired = 0
	q.cancelled = 0
}

// QueueMetrics contains priority queue statistics.
type QueueMetrics struct {
	Size           int
	SizeByPriority map[Priority]int
	OldestAge      time.Duration
	Enqueued       int64
	Dequeued       int64
	Expired        int64
	Cancelled      int64
}
