// Package scheduler implements the M:N work-stealing scheduler: per-thread
// run queues, a primary and backup thread pool, blocking handoff, and the
// run loop that drives context switches into and out of processes.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/processrt/internal/process"
)

// externalQueueCapacity bounds the buffered channel standing in for the
// reference implementation's crossbeam unbounded MPMC channel; Go channels
// need a fixed capacity, so pushes past this block the sender briefly
// rather than growing unboundedly. Generous enough that a burst of sends
// from other threads doesn't stall in practice.
const externalQueueCapacity = 16384

// Queue is one scheduler thread's run queue: an owner-only local FIFO for
// cheap pushes/pops, plus a channel other threads use to hand off
// processes without touching the local slice directly. Grounded on
// original_source/vm/src/scheduler/queue.rs's Worker/Stealer/crossbeam-channel
// split, translated to a mutex-guarded slice (no lock-free deque in the
// standard library or the pack) plus a buffered channel for the external
// side.
type Queue struct {
	mu    sync.Mutex
	local []*process.Process

	external        chan *process.Process
	pendingExternal atomic.Int64
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{external: make(chan *process.Process, externalQueueCapacity)}
}

// PushInternal enqueues p on the local FIFO. Only the owning thread may
// call this.
func (q *Queue) PushInternal(p *process.Process) {
	q.mu.Lock()
	q.local = append(q.local, p)
	q.mu.Unlock()
}

// PushExternal enqueues p from any thread other than the owner.
func (q *Queue) PushExternal(p *process.Process) {
	q.pendingExternal.Add(1)
	q.external <- p
}

// Pop removes and returns the oldest local job, if any. Only the owning
// thread may call this.
func (q *Queue) Pop() (*process.Process, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.local) == 0 {
		return nil, false
	}
	p := q.local[0]
	q.local[0] = nil
	q.local = q.local[1:]
	return p, true
}

// PopExternal takes one job directly off the external channel without
// first moving it to the local queue, used by exclusive-mode threads that
// must not let other threads steal pinned work out from under them.
func (q *Queue) PopExternal() (*process.Process, bool) {
	select {
	case p := <-q.external:
		q.pendingExternal.Add(-1)
		return p, true
	default:
		return nil, false
	}
}

// MoveExternalJobs drains every job currently pending on the external
// channel into the local queue, without blocking, and reports whether it
// moved anything. The initial pending count bounds how many it drains so a
// burst of concurrent external pushes can't make this loop run forever.
func (q *Queue) MoveExternalJobs() bool {
	remaining := q.pendingExternal.Load()
	if remaining == 0 {
		return false
	}

	var moved int64
	q.mu.Lock()
drain:
	for moved < remaining {
		select {
		case p := <-q.external:
			q.local = append(q.local, p)
			moved++
		default:
			break drain
		}
	}
	q.mu.Unlock()

	if moved > 0 {
		q.pendingExternal.Add(-moved)
	}
	return moved > 0
}

// HasExternalJobs reports whether any job is waiting on the external channel.
func (q *Queue) HasExternalJobs() bool {
	return q.pendingExternal.Load() > 0
}

// HasLocalJobs reports whether the local FIFO is non-empty.
func (q *Queue) HasLocalJobs() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.local) > 0
}

// StealInto moves roughly half of q's local jobs onto dst's local queue (a
// FIFO half-steal), reporting whether anything moved. Safe to call from
// any thread; q need not be the caller's own queue.
func (q *Queue) StealInto(dst *Queue) bool {
	q.mu.Lock()
	n := len(q.local)
	if n == 0 {
		q.mu.Unlock()
		return false
	}

	half := (n + 1) / 2
	stolen := append([]*process.Process(nil), q.local[:half]...)
	q.local = append([]*process.Process(nil), q.local[half:]...)
	q.mu.Unlock()

	dst.mu.Lock()
	dst.local = append(dst.local, stolen...)
	dst.mu.Unlock()
	return true
}
