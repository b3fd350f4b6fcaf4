// Package context implements the runtime's context-switch primitive: the
// handoff of control between a scheduler thread and a process.
//
// Go offers no portable, asm-free way to save and restore a raw stack
// pointer from user code, so there is no literal translation of the
// reference runtime's "swap SP/PC, jump" context switch. The idiomatic Go
// analogue is one goroutine per process, parked on an unbuffered channel
// until the scheduler thread resumes it, handing control back the same way
// when it suspends. This is the one place the runtime deliberately
// substitutes a Go-native mechanism for a literal translation of the
// reference design; see DESIGN.md's internal/context section for the full
// reasoning.
package context

import (
	"sync"

	"github.com/ehrlich-b/processrt/internal/process"
)

// Frame is one process's rendezvous point with whichever scheduler thread
// is currently resuming it: resume wakes the process's goroutine, parked
// wakes the thread waiting for it to suspend again. Both channels are
// unbuffered so a send only completes once the other side is actually
// waiting, giving the same "atomically from the caller's perspective"
// handoff property spec.md's switch primitive describes.
type Frame struct {
	resume chan struct{}
	parked chan struct{}
}

func newFrame() *Frame {
	return &Frame{resume: make(chan struct{}), parked: make(chan struct{})}
}

// frames associates each process with its Frame for the process's entire
// lifetime. A sync.Map rather than a field on process.Process: internal/process
// must not import internal/context (context already imports process, for
// Stack and the process pointer types CurrentProcess/SwitchTo traffic in),
// so the association lives on this side of that one-way dependency.
var frames sync.Map // map[*process.Process]*Frame

func frameFor(p *process.Process) *Frame {
	v, ok := frames.Load(p)
	if !ok {
		panic("context: process has no frame; Spawn was never called for it")
	}
	return v.(*Frame)
}

// owners associates each process with whichever thread's SwitchTo call most
// recently resumed it. A process migrates between scheduler threads across
// its lifetime, so this is refreshed on every switch rather than set once
// like frames.
var owners sync.Map // map[*process.Process]process.ActionSetter

func setCurrentActionSetter(p *process.Process, setter process.ActionSetter) {
	owners.Store(p, setter)
}

// CurrentActionSetter returns the ActionSetter (scheduler thread) currently
// running p, for use from inside p's own goroutine when it calls
// process.FinishMessage. Returns nil if p is not presently switched in.
func CurrentActionSetter(p *process.Process) process.ActionSetter {
	v, ok := owners.Load(p)
	if !ok {
		return nil
	}
	return v.(process.ActionSetter)
}

// Spawn creates p's dedicated goroutine and parks it immediately awaiting
// its first resume. The goroutine is created exactly once and is never
// replaced for the process's lifetime, preserving "one stack per process,
// reused across messages until termination" even though the Go runtime
// manages the goroutine's actual call frames rather than the mmap'd Stack
// bytes (those remain the private-page/guard-page carrier SwitchTo and
// CurrentProcess use).
//
// run is the process's message-dispatch loop; it receives a yield function
// that suspends back to the scheduler thread and blocks until resumed
// again. run returning ends the goroutine — callers only let that happen
// once the process has terminated.
func Spawn(p *process.Process, run func(yield func())) {
	f := newFrame()
	frames.Store(p, f)

	go func() {
		<-f.resume
		run(func() {
			f.parked <- struct{}{}
			<-f.resume
		})
		f.parked <- struct{}{}
		frames.Delete(p)
	}()
}
