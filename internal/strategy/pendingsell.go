package strategy

import (
	"sync"

	"ladderbot/pkg/types"
)

// PendingSellQueue retries sell placements that failed at emission time —
// settlement delay, balance mismatch, or a transient API error — with
// balance-aware resizing.
type PendingSellQueue struct {
	mu    sync.Mutex
	items []*types.PendingSell
}

// NewPendingSellQueue creates an empty queue.
func NewPendingSellQueue() *PendingSellQueue {
	return &PendingSellQueue{}
}

// Push enqueues a sell for retry.
func (q *PendingSellQueue) Push(p *types.PendingSell) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, p)
}

// Snapshot returns a copy of the queue's current contents, safe to range
// over while the queue is concurrently mutated by Remove.
func (q *PendingSellQueue) Snapshot() []*types.PendingSell {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*types.PendingSell, len(q.items))
	copy(out, q.items)
	return out
}

// Remove drops a specific pending sell from the queue (by pointer
// identity), used once it's placed successfully or permanently dropped.
func (q *PendingSellQueue) Remove(p *types.PendingSell) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item == p {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of pending sells currently queued.
func (q *PendingSellQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
