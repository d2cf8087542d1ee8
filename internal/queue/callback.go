// Package queue holds the producer-safe containers drained by the frame loop
// and the assembly goroutine.
package queue

import (
	"container/heap"
	"sync"

	"github.com/osmike/pacer/internal/domain"
)

// DefaultPriority is the priority used by Push.
const DefaultPriority = 0

// item is one entry in the callback heap.
type item struct {
	fn       domain.Callback
	priority int
	seq      uint64
}

// callbackHeap orders items by priority (highest first), then by sequence
// (oldest first), which makes equal-priority callbacks FIFO.
type callbackHeap []item

func (h callbackHeap) Len() int { return len(h) }

func (h callbackHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h callbackHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *callbackHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *callbackHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = item{} // allow GC
	*h = old[:n-1]
	return it
}

// CallbackQueue is a priority queue of one-shot callbacks with many
// producers and a single draining consumer.
//
// Drain never runs callbacks under the queue lock: it takes the pending heap
// as a locally owned snapshot, so producers may push concurrently (even from
// inside a callback) and their callbacks land in the next drain.
type CallbackQueue struct {
	mu   sync.Mutex
	heap callbackHeap
	seq  uint64
}

// NewCallbackQueue creates an empty queue.
func NewCallbackQueue() *CallbackQueue {
	return &CallbackQueue{}
}

// Push enqueues fn at DefaultPriority. Nil callbacks are ignored.
func (q *CallbackQueue) Push(fn domain.Callback) {
	q.PushPriority(fn, DefaultPriority)
}

// PushPriority enqueues fn; higher priorities drain first.
func (q *CallbackQueue) PushPriority(fn domain.Callback, priority int) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.seq++
	heap.Push(&q.heap, item{fn: fn, priority: priority, seq: q.seq})
	q.mu.Unlock()
}

// Len returns the number of pending callbacks.
func (q *CallbackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Drain runs every callback pending at the time of the call, in priority
// order, and returns how many ran.
//
// If a callback panics, the callbacks of the snapshot that have not run yet
// are merged back into the queue before the panic continues, so they are
// deferred to the next drain rather than lost.
func (q *CallbackQueue) Drain() (ran int) {
	q.mu.Lock()
	snapshot := q.heap
	q.heap = nil
	q.mu.Unlock()

	defer func() {
		if snapshot.Len() > 0 {
			q.requeue(snapshot)
		}
	}()

	for snapshot.Len() > 0 {
		it := heap.Pop(&snapshot).(item)
		it.fn()
		ran++
	}
	return ran
}

// requeue merges leftover items back, keeping their original sequence so
// they still precede anything pushed after them.
func (q *CallbackQueue) requeue(items callbackHeap) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		heap.Push(&q.heap, it)
	}
}
