package blockio

import (
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/processrt/internal/logging"
	"github.com/ehrlich-b/processrt/internal/metrics"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/reschedule"
	"github.com/ehrlich-b/processrt/internal/timeout"
)

// submitQueueCapacity bounds the buffered channel requests wait on before
// the worker's loop picks them up, the same bounded-channel-in-place-of-
// unbounded-queue substitution internal/scheduler's external queue makes.
const submitQueueCapacity = 4096

// pollInterval is how often the worker checks for new submissions and
// completions when neither channel nor ring currently has anything ready.
const pollInterval = time.Millisecond

// TimeoutExpirer mirrors internal/netpoll's local-interface pattern: the
// one method this package needs from the TimeoutWorker, so blockio never
// imports internal/scheduler.
type TimeoutExpirer interface {
	Expire(tok *timeout.Token)
}

// ring is the subset of *Ring the Worker's loop needs, extracted so tests
// can drive the dispatch/reschedule logic with a fake ring instead of a
// real io_uring instance (mirroring internal/netpoll's Poller interface).
type ring interface {
	prepareSQE() *giouring.SubmissionQueueEntry
	submit() (uint, error)
	popCQE() (*giouring.CompletionQueueEvent, bool)
	markSeen(cqe *giouring.CompletionQueueEvent)
}

// Worker owns one Ring and the loop that drives it: submitting queued
// Requests, polling for completions, and rescheduling whichever process was
// waiting on each one. Run is the only code that touches the ring;
// internal/runtime starts it on a goroutine of its own, not on a scheduler
// thread.
type Worker struct {
	ring ring

	submit chan *Request

	mu      sync.Mutex
	pending map[uint64]*Request
	nextID  atomic.Uint64

	toReschedule  chan *process.Process
	timeoutWorker TimeoutExpirer
	observer      metrics.Observer

	stop atomic.Bool
}

// NewWorker creates a Worker around r. toReschedule receives processes
// whose file operation completed and who won their reschedule race.
func NewWorker(r *Ring, toReschedule chan *process.Process, timeoutWorker TimeoutExpirer) *Worker {
	return &Worker{
		ring:          r,
		submit:        make(chan *Request, submitQueueCapacity),
		pending:       make(map[uint64]*Request),
		toReschedule:  toReschedule,
		timeoutWorker: timeoutWorker,
		observer:      metrics.NoOpObserver{},
	}
}

// SetObserver installs a metrics observer.
func (w *Worker) SetObserver(o metrics.Observer) {
	w.observer = o
}

// Stop signals the worker's Run loop to exit.
func (w *Worker) Stop() {
	w.stop.Store(true)
}

// Submit enqueues req for submission on the worker's next loop tick. The
// caller has already moved its process to WaitingIO before calling this.
func (w *Worker) Submit(req *Request) {
	w.submit <- req
}

// Run drains queued requests onto the ring, submits them, and drains
// completions, until Stop is called. Meant to run as the body of an
// exclusive-mode scheduler thread's pinned loop.
func (w *Worker) Run() {
	for !w.stop.Load() {
		did := w.drainSubmissions()
		did = w.drainCompletions() || did
		if !did {
			time.Sleep(pollInterval)
		}
	}
}

func (w *Worker) drainSubmissions() bool {
	var submitted bool
drain:
	for {
		select {
		case req := <-w.submit:
			w.prepare(req)
			submitted = true
		default:
			break drain
		}
	}
	if submitted {
		if _, err := w.ring.submit(); err != nil {
			logging.Default().Errorf("blockio worker: submit failed: %v", err)
		}
	}
	return submitted
}

func (w *Worker) prepare(req *Request) {
	sqe := w.ring.prepareSQE()
	if sqe == nil {
		// Queue momentarily full; re-enqueue for the next tick.
		w.submit <- req
		return
	}

	id := w.nextID.Add(1)
	req.userData = id

	switch req.Op {
	case OpRead:
		sqe.PrepareRead(req.FD, req.Buf, req.Offset)
	case OpWrite:
		sqe.PrepareWrite(req.FD, req.Buf, req.Offset)
	case OpOpenAt:
		sqe.PrepareOpenat(giouring.AtFDCWD, req.Path, int32(req.Flags), req.Mode)
	case OpClose:
		sqe.PrepareClose(req.FD)
	}
	sqe.UserData = id

	w.mu.Lock()
	w.pending[id] = req
	w.mu.Unlock()
}

func (w *Worker) drainCompletions() bool {
	var completed bool
	for {
		cqe, ok := w.ring.popCQE()
		if !ok {
			break
		}
		completed = true
		w.complete(cqe)
		w.ring.markSeen(cqe)
	}
	return completed
}

func (w *Worker) complete(cqe *giouring.CompletionQueueEvent) {
	w.mu.Lock()
	req, ok := w.pending[cqe.UserData]
	if ok {
		delete(w.pending, cqe.UserData)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	req.Res = cqe.Res
	if cqe.Res < 0 {
		req.Err = syscall.Errno(-cqe.Res)
	}

	rights, invalidated := req.Waiter.TryRescheduleForIO()
	w.observer.ObserveReschedule(rights.IsAcquired())

	switch rights {
	case reschedule.Failed:
		return
	case reschedule.AcquiredWithTimeout:
		w.timeoutWorker.Expire(invalidated)
	}

	w.toReschedule <- req.Waiter
}
