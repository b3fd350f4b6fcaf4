package netpoll

import (
	"sync/atomic"

	"github.com/ehrlich-b/processrt/internal/logging"
	"github.com/ehrlich-b/processrt/internal/metrics"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/reschedule"
	"github.com/ehrlich-b/processrt/internal/timeout"
)

// PollTimeoutMs bounds how long one Wait call blocks, so a worker notices
// Stop() without needing a self-pipe or eventfd wakeup mechanism.
const PollTimeoutMs = 1000

// TimeoutExpirer is the hook into the TimeoutWorker a poller worker uses to
// report a timeout invalidated by an I/O readiness win. It is the same
// local-interface pattern internal/timeout uses for Waiter: netpoll never
// imports internal/scheduler, only the one method it needs.
type TimeoutExpirer interface {
	Expire(tok *timeout.Token)
}

// Worker repeatedly polls for readiness and reschedules the processes it
// wakes, implementing the ordering spec.md §4.8 requires: an
// AcquiredWithTimeout result must be reported to the TimeoutWorker before
// the process is handed to the scheduler, so the timeout heap never
// dispatches an already-rescheduled process from a stale entry (scenario 4).
type Worker struct {
	poller        Poller
	events        []Result
	toReschedule  chan *process.Process
	timeoutWorker TimeoutExpirer
	observer      metrics.Observer
	stop          atomic.Bool
}

// NewWorker creates a Worker. toReschedule receives processes that win
// their I/O reschedule race; the scheduler drains it onto a runqueue.
func NewWorker(poller Poller, toReschedule chan *process.Process, timeoutWorker TimeoutExpirer) *Worker {
	return &Worker{
		poller:        poller,
		events:        make([]Result, EventBufferSize),
		toReschedule:  toReschedule,
		timeoutWorker: timeoutWorker,
		observer:      metrics.NoOpObserver{},
	}
}

// SetObserver installs a metrics observer.
func (w *Worker) SetObserver(o metrics.Observer) {
	w.observer = o
}

// Stop signals the worker to exit at the next poll timeout.
func (w *Worker) Stop() {
	w.stop.Store(true)
}

// Run polls and dispatches until Stop is called. Meant to run on its own
// goroutine for the runtime's lifetime, one per poller worker thread.
func (w *Worker) Run() {
	for !w.stop.Load() {
		n, err := w.poller.Wait(w.events, PollTimeoutMs)
		if err != nil {
			logging.Default().Errorf("netpoll worker: wait failed: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			w.dispatch(w.events[i])
		}
	}
}

// dispatch handles one readiness event: fold the fired interest bits into
// the process's state, then attempt to win reschedule rights. The
// AcquiredWithTimeout -> Expire -> enqueue order is load-bearing.
func (w *Worker) dispatch(r Result) {
	p, bits := DecodeUserData(r.UserData)
	p.SetPollBit(bits)

	rights, invalidated := p.TryRescheduleForIO()
	w.observer.ObserveReschedule(rights.IsAcquired())

	switch rights {
	case reschedule.Failed:
		return
	case reschedule.AcquiredWithTimeout:
		w.timeoutWorker.Expire(invalidated)
	}

	w.toReschedule <- p
}
