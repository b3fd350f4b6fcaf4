package context

import (
	"sync/atomic"
	"unsafe"

	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/stackpool"
)

// Switcher is the per-scheduler-thread context-switch state: which process
// (if any) is currently running on this thread. spec.md's "Thread" module
// embeds a Switcher rather than internal/context importing
// internal/scheduler for a *Thread type, flipping the dependency so
// context stays a leaf package importable from anywhere.
type Switcher struct {
	current atomic.Pointer[process.Process]
}

// SwitchTo transfers control to p: it records p as this thread's current
// process, updates the real private page of p's Stack so scenario 6 of
// spec.md §8 (reading back the running process pointer from the private
// page) holds against actual mapped memory, then wakes p's goroutine and
// blocks until it parks again (by calling its yield function, or by
// terminating). setter is recorded as p's current owning thread for the
// duration of the switch, so process.FinishMessage (called from inside p's
// own goroutine, which has no other way to name "whichever thread is
// currently running me") can reach it via CurrentActionSetter.
func (s *Switcher) SwitchTo(p *process.Process, setter process.ActionSetter) {
	writePrivatePage(p.Stack, p)
	s.current.Store(p)
	setCurrentActionSetter(p, setter)

	f := frameFor(p)
	f.resume <- struct{}{}
	<-f.parked

	writePrivatePage(p.Stack, nil)
	s.current.Store(nil)
}

// Current returns the process this thread is presently running, or nil
// between switches.
func (s *Switcher) Current() *process.Process {
	return s.current.Load()
}

// writePrivatePage stores p (or clears it, for nil) into the private page
// of stack, at the address PrivatePagePtr returns.
func writePrivatePage(stack *stackpool.Stack, p *process.Process) {
	slot := (*unsafe.Pointer)(stack.PrivatePagePtr())
	atomic.StorePointer(slot, unsafe.Pointer(p))
}

// CurrentProcess reads the process pointer currently recorded in stack's
// private page, giving compiled-code call sites access to process-local
// data without it being passed as an explicit argument, per spec.md §4.9.
func CurrentProcess(stack *stackpool.Stack) *process.Process {
	slot := (*unsafe.Pointer)(stack.PrivatePagePtr())
	return (*process.Process)(atomic.LoadPointer(slot))
}
