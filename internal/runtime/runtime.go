// Package runtime is the top-level orchestration layer: it wires the
// scheduler pool, the timeout worker, the network poller worker, and
// (optionally) the blockio file worker into one running system, the way
// the teacher's backend.go wires queue runners and the control plane
// together behind CreateAndServe. Nothing downstream (internal/abi,
// internal/scheduler, internal/timeout, internal/netpoll) depends on this
// package; it exists purely to connect them for callers (processtest and
// the test suites).
package runtime

import (
	goruntime "runtime"

	"github.com/ehrlich-b/processrt/internal/abi"
	"github.com/ehrlich-b/processrt/internal/blockio"
	"github.com/ehrlich-b/processrt/internal/logging"
	"github.com/ehrlich-b/processrt/internal/metrics"
	"github.com/ehrlich-b/processrt/internal/netpoll"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/rterr"
	"github.com/ehrlich-b/processrt/internal/scheduler"
	"github.com/ehrlich-b/processrt/internal/timeout"
	"github.com/ehrlich-b/processrt/internal/typeinfo"
)

// rescheduleQueueCapacity bounds the channels the timeout worker and each
// netpoll worker hand woken processes back on, mirroring the bounded-
// channel-for-unbounded-queue substitution internal/scheduler's external
// queue already makes.
const rescheduleQueueCapacity = 4096

// RuntimeParams configures a Runtime, following the teacher's
// DeviceParams/queue.Config pattern of a documented-defaults top-level
// struct.
type RuntimeParams struct {
	// ProcessThreads is the primary scheduler pool size. Zero means
	// runtime.GOMAXPROCS(0).
	ProcessThreads int
	// BackupThreads is the backup pool size. Zero means 1.
	BackupThreads int
	// EnableFileIO starts the giouring-backed blockio worker. Off by
	// default since it requires a real io_uring-capable kernel.
	EnableFileIO bool
	// FileIOEntries sizes the io_uring instance when EnableFileIO is set.
	// Zero means blockio.DefaultEntries.
	FileIOEntries uint32
}

// Runtime owns every long-lived worker goroutine a process needs: the
// scheduler pool, the timeout worker, one network poller worker, and
// (optionally) the file I/O worker. Callers get one from New, Start it,
// Spawn processes onto it, and Stop/Wait it down at shutdown.
type Runtime struct {
	Pool     *scheduler.Pool
	Timeouts *timeout.Worker
	Poller   netpoll.Poller
	Net      *netpoll.Worker
	Files    *blockio.Worker

	metrics *metrics.Metrics

	netWoken     chan *process.Process
	timeoutWoken chan timeout.Waiter

	fileWoken chan *process.Process

	stop chan struct{}
}

// New creates a Runtime wired per params, but does not start any
// goroutines; call Start for that.
func New(params RuntimeParams) (*Runtime, error) {
	poller, err := netpoll.NewPoller()
	if err != nil {
		return nil, rterr.Wrap("runtime.new", err)
	}

	m := metrics.New()
	observer := metrics.NewObserver(m)

	pool := scheduler.NewPool(scheduler.Config{
		ProcessThreads: params.ProcessThreads,
		BackupThreads:  params.BackupThreads,
	}, goruntime.GOMAXPROCS(0))
	pool.SetObserver(observer)

	timeoutWoken := make(chan timeout.Waiter, rescheduleQueueCapacity)
	timeouts := timeout.NewWorker(timeoutWoken)
	timeouts.SetObserver(observer)

	netWoken := make(chan *process.Process, rescheduleQueueCapacity)
	netWorker := netpoll.NewWorker(poller, netWoken, timeouts)
	netWorker.SetObserver(observer)

	rt := &Runtime{
		Pool:         pool,
		Timeouts:     timeouts,
		Poller:       poller,
		Net:          netWorker,
		metrics:      m,
		netWoken:     netWoken,
		timeoutWoken: timeoutWoken,
		stop:         make(chan struct{}),
	}

	if params.EnableFileIO {
		ring, err := blockio.NewRing(blockio.Config{Entries: params.FileIOEntries})
		if err != nil {
			return nil, rterr.Wrap("runtime.new", err)
		}
		rt.fileWoken = make(chan *process.Process, rescheduleQueueCapacity)
		rt.Files = blockio.NewWorker(ring, rt.fileWoken, timeouts)
		rt.Files.SetObserver(observer)
	}

	return rt, nil
}

// Metrics returns a point-in-time snapshot of the runtime's counters.
func (rt *Runtime) Metrics() metrics.Snapshot {
	return rt.metrics.Snapshot()
}

// Start launches every worker goroutine: the scheduler pool's threads and
// blocking monitor, the timeout worker, the netpoll worker, the optional
// file worker, and the three drain loops that feed woken processes back
// onto the pool.
func (rt *Runtime) Start() {
	rt.Pool.Start()
	go rt.Timeouts.Run()
	go rt.Net.Run()
	if rt.Files != nil {
		go rt.Files.Run()
	}

	go rt.drainTimeouts()
	go rt.drainNet()
	if rt.Files != nil {
		go rt.drainFiles()
	}

	logging.Default().Info("runtime started")
}

func (rt *Runtime) drainTimeouts() {
	for {
		select {
		case w := <-rt.timeoutWoken:
			if p, ok := w.(*process.Process); ok {
				rt.Pool.Schedule(p)
			}
		case <-rt.stop:
			return
		}
	}
}

func (rt *Runtime) drainNet() {
	for {
		select {
		case p := <-rt.netWoken:
			rt.Pool.Schedule(p)
		case <-rt.stop:
			return
		}
	}
}

func (rt *Runtime) drainFiles() {
	for {
		select {
		case p := <-rt.fileWoken:
			rt.Pool.Schedule(p)
		case <-rt.stop:
			return
		}
	}
}

// Stop signals every worker (pool threads, timeout worker, netpoll worker,
// file worker, and this runtime's own drain loops) to exit at their next
// opportunity.
func (rt *Runtime) Stop() {
	rt.Pool.Stop()
	rt.Timeouts.Stop()
	rt.Net.Stop()
	if rt.Files != nil {
		rt.Files.Stop()
	}
	close(rt.stop)
	rt.metrics.Stop()
}

// Wait blocks until the scheduler pool's threads have all returned. The
// other workers' loops are self-contained goroutines with no external
// join point; Stop is sufficient to let them unwind.
func (rt *Runtime) Wait() {
	rt.Pool.Wait()
}

// Spawn allocates a new process on one of the pool's primary threads
// (round-robin by the process's own identifier parity would require the
// process to exist first, so thread 0 is used; callers that care about
// thread affinity should call abi.ProcessNew directly), wires it to this
// runtime's workers, and schedules it for its first run.
func (rt *Runtime) Spawn(typ *typeinfo.Descriptor, handler abi.HandlerFunc) *process.Process {
	thread := rt.Pool.Threads()[0]
	p := abi.ProcessNew(typ, thread, handler, rt.Pool, rt.Timeouts, rt.Poller, rt.Files)
	rt.Pool.Schedule(p)
	return p
}
