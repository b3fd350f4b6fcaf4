package scheduler

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/processrt/internal/logging"
	"github.com/ehrlich-b/processrt/internal/metrics"
	"github.com/ehrlich-b/processrt/internal/process"
)

// BlockingMonitorInterval is how often the pool's monitor goroutine checks
// for threads stuck in a blocking operation before promoting a backup
// thread to keep the primary pool's parallelism from collapsing. spec.md
// §4.6 calls for a short interval; the reference uses a dedicated
// single-purpose goroutine for exactly this (mirrored by the teacher's
// ioLoop pattern of isolating one narrow responsibility per goroutine).
const BlockingMonitorInterval = time.Millisecond

// Config holds the Pool's sizing knobs, following the teacher's
// DeviceParams/queue.Config pattern of documented-default configuration
// structs.
type Config struct {
	// ProcessThreads is the primary pool size. Zero means NewPool's numCPU
	// argument (internal/runtime passes runtime.GOMAXPROCS(0)).
	ProcessThreads int
	// BackupThreads is the backup pool size, lazily started as primary
	// threads block.
	BackupThreads int
}

// Pool owns the primary and backup thread pools, the global injector
// queue jobs fall back to when a thread's own queue and stealing both
// come up empty, and the blocking-handoff monitor. Grounded on spec.md
// §4.6 and the work-stealing design of
// original_source/vm/src/scheduler/{queue,process_worker}.rs.
type Pool struct {
	global *Queue

	primary []*Thread
	backup  []*Thread

	stop atomic.Bool

	parkMu sync.Mutex
	park   *sync.Cond

	observer metrics.Observer

	wg sync.WaitGroup
}

// NewPool creates a Pool with cfg's sizing (zero values fall back to
// numCPU primary threads and one backup thread).
func NewPool(cfg Config, numCPU int) *Pool {
	primaryN := cfg.ProcessThreads
	if primaryN <= 0 {
		primaryN = numCPU
	}
	backupN := cfg.BackupThreads
	if backupN <= 0 {
		backupN = 1
	}

	p := &Pool{
		global:   NewQueue(),
		observer: metrics.NoOpObserver{},
	}
	p.park = sync.NewCond(&p.parkMu)

	seed := rand.Uint64()
	for i := 0; i < primaryN; i++ {
		p.primary = append(p.primary, NewThread(i, seed+uint64(i)))
	}
	for i := 0; i < backupN; i++ {
		p.backup = append(p.backup, NewThread(primaryN+i, seed+uint64(primaryN+i)))
	}

	return p
}

// SetObserver installs a metrics observer on the pool and every thread it
// owns.
func (p *Pool) SetObserver(o metrics.Observer) {
	p.observer = o
	for _, t := range p.primary {
		t.SetObserver(o)
	}
	for _, t := range p.backup {
		t.SetObserver(o)
	}
}

// Schedule pushes p onto the global injector queue, for callers without a
// specific thread affinity (e.g. a newly created process, or the
// TimeoutWorker/netpoll.Worker rescheduling a process from another
// goroutine entirely).
func (p *Pool) Schedule(proc *process.Process) {
	p.global.PushExternal(proc)
	p.wake()
}

// Start launches every primary thread's run loop plus the blocking
// monitor. Backup threads are started lazily, on first promotion.
func (p *Pool) Start() {
	for _, t := range p.primary {
		p.wg.Add(1)
		go p.runThread(t)
	}
	go p.monitorBlocking()
}

// Stop flips the pool's stop flag; its threads and the blocking monitor
// observe it between processes and exit. The TimeoutWorker and each
// netpoll.Worker have stop flags of their own, which this call does not
// set; internal/runtime's Stop stops them separately.
func (p *Pool) Stop() {
	p.stop.Store(true)
	p.wake()
}

// Wait blocks until every started thread's run loop has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) wake() {
	p.parkMu.Lock()
	p.park.Broadcast()
	p.parkMu.Unlock()
}

// runThread is one thread's normal-mode work loop: local queue, steal from
// a random sibling, move external jobs in, fall back to the global
// injector, or park. Mirrors ProcessWorker::normal_iteration.
func (p *Pool) runThread(t *Thread) {
	defer p.wg.Done()

	for !p.stop.Load() {
		if t.currentMode() == ModeExclusive {
			p.exclusiveIteration(t)
			continue
		}
		p.normalIteration(t)
	}
}

func (p *Pool) normalIteration(t *Thread) {
	if proc, ok := t.Queue.Pop(); ok {
		p.runProcess(t, proc)
		return
	}

	if p.stealFromSibling(t) {
		return
	}

	if t.Queue.MoveExternalJobs() {
		return
	}

	if proc, ok := p.global.PopExternal(); ok {
		p.runProcess(t, proc)
		return
	}

	p.parkWhile(func() bool {
		return !p.global.HasExternalJobs() && !t.Queue.HasExternalJobs() && !p.stop.Load()
	})
}

func (p *Pool) exclusiveIteration(t *Thread) {
	if proc, ok := t.Queue.Pop(); ok {
		p.runProcess(t, proc)
		return
	}

	if proc, ok := t.Queue.PopExternal(); ok {
		p.runProcess(t, proc)
		return
	}

	p.parkWhile(func() bool {
		return !t.Queue.HasExternalJobs() && !p.stop.Load()
	})
}

// stealFromSibling tries every other primary thread once, in a random
// rotation, and steals from the first with local work.
func (p *Pool) stealFromSibling(t *Thread) bool {
	n := len(p.primary)
	if n <= 1 {
		return false
	}

	start := int(t.rng.Int64N(int64(n)))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		sibling := p.primary[idx]
		if sibling == t {
			continue
		}
		if sibling.Queue.StealInto(t.Queue) {
			return true
		}
	}
	return false
}

// parkWhile blocks on the pool's condition variable while cond holds,
// waking on every Schedule/Stop/wake call to re-check it. Mirrors
// PoolState::park_while.
func (p *Pool) parkWhile(cond func() bool) {
	p.parkMu.Lock()
	for cond() {
		p.park.Wait()
	}
	p.parkMu.Unlock()
}

// runProcess performs one context switch into proc and inspects the
// action it left behind.
func (p *Pool) runProcess(t *Thread, proc *process.Process) {
	t.Switcher.SwitchTo(proc, t)

	switch t.TakeAction() {
	case process.ActionTerminate:
		p.teardown(t, proc)
	case process.ActionContinue:
		if proc.State() == process.Runnable {
			t.Queue.PushInternal(proc)
		}
	}
}

// teardown releases a terminated process's stack back to its owning
// thread's pool. Deferred here rather than performed by the process
// itself, since a process must not free its own stack while still
// running on it (spec.md §4.9).
func (p *Pool) teardown(t *Thread, proc *process.Process) {
	if proc.Stack != nil {
		t.Stacks.Add(proc.Stack)
	}
}

// monitorBlocking promotes a backup thread whenever a primary thread has
// been blocking longer than BlockingMonitorInterval, and starts that
// backup's run loop if it hasn't been started yet.
func (p *Pool) monitorBlocking() {
	started := make([]bool, len(p.backup))

	ticker := time.NewTicker(BlockingMonitorInterval)
	defer ticker.Stop()

	for !p.stop.Load() {
		<-ticker.C

		blocked := 0
		for _, t := range p.primary {
			if t.IsBlocking() {
				blocked++
			}
		}
		if blocked == 0 {
			continue
		}

		for i := 0; i < blocked && i < len(p.backup); i++ {
			if started[i] {
				continue
			}
			started[i] = true
			p.wg.Add(1)
			go p.runThread(p.backup[i])
			logging.Default().Debugf("scheduler: promoted backup thread %d", p.backup[i].ID)
		}
	}
}

// Threads exposes the primary pool, for tests and diagnostics.
func (p *Pool) Threads() []*Thread {
	return p.primary
}
