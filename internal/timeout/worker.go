package timeout

import (
	"container/heap"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/processrt/internal/logging"
	"github.com/ehrlich-b/processrt/internal/metrics"
)

const (
	// FragmentationThreshold triggers a defragmentation pass once the
	// ratio of expired-but-not-yet-removed entries to heap size reaches
	// this fraction.
	FragmentationThreshold = 0.10

	// MaxMessagesPerIteration bounds how many intake messages are drained
	// per loop iteration, keeping the dispatch loop responsive even under
	// a burst of suspensions.
	MaxMessagesPerIteration = 64

	// MinSleep is the floor on how long the worker will sleep between
	// dispatch passes, avoiding repeated tiny sleeps when timeouts
	// cluster close together.
	MinSleep = 10 * time.Millisecond
)

type suspendMsg struct {
	process Waiter
	token   *Token
}

// Worker is the single dedicated owner of the timeout heap. All heap
// mutation happens on the goroutine running Run; every other goroutine
// only ever writes to the intake channel or the expired counter.
type Worker struct {
	intake  chan suspendMsg
	expired atomic.Int64
	stop    atomic.Bool

	heap minHeap

	toReschedule chan Waiter

	observer metrics.Observer
}

// NewWorker creates a Worker. toReschedule receives processes that win
// their reschedule race after a timeout fires; the scheduler drains it and
// pushes them onto a runqueue.
func NewWorker(toReschedule chan Waiter) *Worker {
	return &Worker{
		intake:       make(chan suspendMsg, 4096),
		toReschedule: toReschedule,
	}
}

// SetObserver installs a metrics observer.
func (w *Worker) SetObserver(o metrics.Observer) {
	w.observer = o
}

// Suspend enqueues a new suspension on the buffered intake channel; it
// blocks the caller only while that channel is full.
func (w *Worker) Suspend(process Waiter, token *Token) {
	w.intake <- suspendMsg{process: process, token: token}
}

// Expire is called by any thread that observes AcquiredWithTimeout: a
// process was rescheduled by something other than its own timeout, so the
// corresponding heap entry is now garbage until the next defragmentation
// pass.
func (w *Worker) Expire(_ *Token) {
	w.expired.Add(1)
	if w.observer != nil {
		w.observer.ObserveTimeoutExpired()
	}
}

// Stop signals the worker to exit at the next opportunity.
func (w *Worker) Stop() {
	w.stop.Store(true)
}

// Run drains intake, defragments, and dispatches expired entries until
// Stop is called. It is meant to run on its own goroutine for the lifetime
// of the runtime.
func (w *Worker) Run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for !w.stop.Load() {
		w.drainIntake()
		w.maybeDefragment()
		wait := w.dispatchExpired()

		if wait < 0 {
			// Heap is empty; nothing to wait for but new intake. Still
			// wake periodically to notice Stop().
			wait = time.Second
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case msg := <-w.intake:
			w.enqueue(msg)
		case <-timer.C:
		}
	}
}

func (w *Worker) drainIntake() {
	for i := 0; i < MaxMessagesPerIteration; i++ {
		select {
		case msg := <-w.intake:
			w.enqueue(msg)
		default:
			return
		}
	}
}

func (w *Worker) enqueue(msg suspendMsg) {
	heap.Push(&w.heap, &heapEntry{
		deadline: msg.token.Deadline,
		process:  msg.process,
		token:    msg.token,
	})
}

// maybeDefragment rebuilds the heap keeping only entries whose process
// still references their token, once the expired/size ratio crosses
// FragmentationThreshold.
func (w *Worker) maybeDefragment() {
	n := len(w.heap)
	if n == 0 {
		return
	}

	ratio := float64(w.expired.Load()) / float64(n)
	if ratio < FragmentationThreshold {
		return
	}

	kept := w.heap[:0]
	removed := 0
	for _, e := range w.heap {
		if e.valid() {
			kept = append(kept, e)
		} else {
			removed++
		}
	}
	w.heap = kept
	heap.Init(&w.heap)

	if removed > 0 {
		w.expired.Add(-int64(removed))
	}

	logging.Default().Debugf("timeout worker defragmented heap: removed=%d remaining=%d", removed, len(w.heap))
}

// dispatchExpired pops and processes every entry whose deadline has
// passed, pushing winners onto toReschedule, and returns how long to sleep
// before the next pass: at least MinSleep, or -1 if the heap is empty, in
// which case Run waits on intake with a one-second timer so it still
// notices Stop.
func (w *Worker) dispatchExpired() time.Duration {
	now := time.Now()

	for len(w.heap) > 0 {
		top := w.heap[0]

		if !top.valid() {
			heap.Pop(&w.heap)
			continue
		}

		if top.deadline.After(now) {
			wait := top.deadline.Sub(now)
			if wait < MinSleep {
				wait = MinSleep
			}
			return wait
		}

		heap.Pop(&w.heap)

		if top.process.TryRescheduleAfterTimeout(top.token) {
			if w.observer != nil {
				w.observer.ObserveTimeoutFired()
			}
			w.toReschedule <- top.process
		}
	}

	return -1 // empty heap: Run waits on intake, waking once a second
}

// Len reports the current heap size, exposed for tests.
func (w *Worker) Len() int {
	return len(w.heap)
}
