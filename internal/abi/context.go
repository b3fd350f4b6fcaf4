package abi

import (
	"github.com/ehrlich-b/processrt/internal/blockio"
	"github.com/ehrlich-b/processrt/internal/context"
	"github.com/ehrlich-b/processrt/internal/netpoll"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/scheduler"
	"github.com/ehrlich-b/processrt/internal/timeout"
)

// HandlerFunc is the process's own code: its message-dispatch loop,
// invoked once on the process's dedicated goroutine and expected to call
// back into this package (via rc) for every suspension point. Standing in
// for generated code, since this repository implements the runtime core,
// not a compiler front end.
type HandlerFunc func(rc *RunContext)

// RunContext bundles everything a HandlerFunc needs to call the rest of
// the ABI surface on its own process: the process itself, the yield
// function context.Spawn handed this goroutine, and the runtime's shared
// worker services.
type RunContext struct {
	Process *process.Process

	yield func()

	Pool     *scheduler.Pool
	Timeouts *timeout.Worker
	Poller   netpoll.Poller
	Files    *blockio.Worker
}

// ThreadHandle is the subset of *scheduler.Thread this package needs from
// "whichever thread currently owns my process": implementing
// process.ActionSetter for FinishMessage, and StartBlocking/StopBlocking
// for the handoff File*/TLS* ops use. Declared locally so abi doesn't
// need scheduler.Thread's full surface, matching the local-interface
// convention internal/timeout and internal/netpoll already establish.
type ThreadHandle interface {
	process.ActionSetter
	StartBlocking()
	StopBlocking()
}

// currentThread recovers the ThreadHandle for whichever thread is
// presently running p, via the same association context.SwitchTo records
// for CurrentActionSetter. Panics if called outside of p's own goroutine
// mid-switch, which would itself be a programming error in a HandlerFunc.
func currentThread(p *process.Process) ThreadHandle {
	setter := context.CurrentActionSetter(p)
	th, ok := setter.(ThreadHandle)
	if !ok {
		panic("abi: current thread does not implement ThreadHandle")
	}
	return th
}

// Yield suspends back to the scheduler thread and blocks until resumed,
// without changing the process's lifecycle state. The thin wrapper exists
// so call sites read as ABI calls (rc.Yield()) rather than reaching past
// RunContext into the raw closure.
func (rc *RunContext) Yield() {
	rc.yield()
}
