package scheduler

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/ehrlich-b/processrt/internal/bump"
	"github.com/ehrlich-b/processrt/internal/context"
	"github.com/ehrlich-b/processrt/internal/metrics"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/stackpool"
)

// Mode is whether a Thread runs its normal work-stealing loop or has been
// pinned to a single process. Grounded on process_worker.rs's Mode enum.
type Mode int

const (
	ModeNormal Mode = iota
	ModeExclusive
)

// Thread is one scheduler thread: it embeds context.Switcher (rather than
// internal/context importing internal/scheduler for a *Thread type, which
// would cycle) so its run loop can switch into and out of processes, and
// it owns everything thread-local that must never be shared: a run queue,
// a stack pool, and one bump allocator per size class.
type Thread struct {
	context.Switcher

	ID int

	Queue      *Queue
	Stacks     *stackpool.Pool
	Allocators [4]*bump.Allocator

	rng *rand.Rand

	action   atomic.Int32
	blocking atomic.Bool
	mode     atomic.Int32

	observer metrics.Observer
}

// NewThread creates a Thread with its own queue, stack pool, and allocator
// set. seed distinguishes this thread's random source from its siblings',
// used for picking steal targets (a fresh math/rand/v2 source per thread,
// standing in for the reference's per-worker ThreadRng).
func NewThread(id int, seed uint64) *Thread {
	return &Thread{
		ID:         id,
		Queue:      NewQueue(),
		Stacks:     stackpool.NewPool(stackpool.DefaultUsableSize),
		Allocators: bump.NewAllocatorClasses(),
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		observer:   metrics.NoOpObserver{},
	}
}

// SetObserver installs a metrics observer for this thread's allocators.
func (t *Thread) SetObserver(o metrics.Observer) {
	t.observer = o
	for _, a := range t.Allocators {
		a.SetObserver(o)
	}
}

// SetAction implements process.ActionSetter: a process that terminates on
// its current thread sets Continue/Terminate here instead of tearing
// itself down directly, since it must not free its own stack while still
// running on it.
func (t *Thread) SetAction(a process.Action) {
	t.action.Store(int32(a))
}

// TakeAction reads and resets the pending action to Continue.
func (t *Thread) TakeAction() process.Action {
	return process.Action(t.action.Swap(int32(process.ActionContinue)))
}

// EnterExclusiveMode pushes every pending job (local and external) onto
// the shared global queue, then restricts this thread to only ever
// running the one process pinned to it afterward. Mirrors
// ProcessWorker::enter_exclusive_mode.
func (t *Thread) EnterExclusiveMode(global *Queue) {
	t.Queue.MoveExternalJobs()
	for {
		p, ok := t.Queue.Pop()
		if !ok {
			break
		}
		global.PushExternal(p)
	}
	t.mode.Store(int32(ModeExclusive))
}

// LeaveExclusiveMode returns the thread to normal work-stealing behavior.
func (t *Thread) LeaveExclusiveMode() {
	t.mode.Store(int32(ModeNormal))
}

func (t *Thread) currentMode() Mode {
	return Mode(t.mode.Load())
}

// StartBlocking marks the thread as about to perform a blocking operation,
// giving the pool's monitor goroutine a signal to consider promoting a
// backup thread if it doesn't clear within BlockingMonitorInterval.
func (t *Thread) StartBlocking() {
	t.blocking.Store(true)
}

// StopBlocking clears the blocking flag once the operation returns.
func (t *Thread) StopBlocking() {
	t.blocking.Store(false)
}

// IsBlocking reports whether the thread is currently inside StartBlocking/
// StopBlocking.
func (t *Thread) IsBlocking() bool {
	return t.blocking.Load()
}
