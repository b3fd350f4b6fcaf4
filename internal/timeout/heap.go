package timeout

import (
	"container/heap"
	"time"
)

// Waiter is the subset of process.Process the timeout worker needs. It is
// declared here, not imported from internal/process, so that process can
// hold a *Token (importing internal/timeout) without timeout importing
// process back.
type Waiter interface {
	// TryRescheduleAfterTimeout attempts to move the process back to
	// Runnable because tok's deadline passed. It returns false if another
	// waker already won the race.
	TryRescheduleAfterTimeout(tok *Token) bool
	// CurrentToken returns the token the process is currently suspended
	// on, or nil. A heap entry is only honored while this still points at
	// the same Token the entry was built with.
	CurrentToken() *Token
}

// heapEntry is one pending wakeup: a process waiting until deadline unless
// its token is invalidated first.
type heapEntry struct {
	deadline time.Time
	process  Waiter
	token    *Token
}

// valid reports whether the owning process still names this entry's token.
func (e *heapEntry) valid() bool {
	return e.process.CurrentToken() == e.token
}

// minHeap is a container/heap.Interface ordered by earliest deadline,
// Go's idiomatic binary heap standing in for a Rust BinaryHeap<Reverse<_>>.
type minHeap []*heapEntry

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) {
	*h = append(*h, x.(*heapEntry))
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*minHeap)(nil)
