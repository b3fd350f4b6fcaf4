// Package process implements the runtime's core data model: processes,
// their mailboxes, messages, and the reschedule-rights state machine that
// serializes concurrent wakeups from sends, I/O readiness, and timeouts.
package process

import (
	"sync/atomic"
	"unsafe"

	"github.com/ehrlich-b/processrt/internal/reschedule"
	"github.com/ehrlich-b/processrt/internal/stackpool"
	"github.com/ehrlich-b/processrt/internal/timeout"
	"github.com/ehrlich-b/processrt/internal/typeinfo"
)

// Header is the reference-counted, typed header every process (and in a
// full implementation, every heap object) carries.
type Header struct {
	RefCount atomic.Int64
	Type     *typeinfo.Descriptor
}

// Process is a lightweight, isolated unit of execution: one Stack, one
// Mailbox, an atomic lifecycle state, and at most one active timeout.
type Process struct {
	Header Header

	Stack   *stackpool.Stack
	Mailbox Mailbox

	state      atomic.Uint32
	timeoutPtr atomic.Pointer[timeout.Token]

	CallStack CallStack
}

// New allocates a process of the given type, taking ownership of stack
// (normally handed out by the current scheduler thread's StackPool).
func New(typ *typeinfo.Descriptor, stack *stackpool.Stack) *Process {
	p := &Process{Stack: stack}
	p.Header.Type = typ
	p.Header.RefCount.Store(1)
	return p
}

// Identifier derives a stable numeric identifier from the process's own
// pointer. Its low two bits are always zero (Go heap allocations of
// pointer-sized-or-larger structs are at least 8-byte aligned) and are
// reserved by the network poller to carry interest bits in its userdata;
// see internal/netpoll.
func (p *Process) Identifier() uint64 {
	return uint64(uintptr(unsafe.Pointer(p)))
}

// SendMessage appends msg to receiver's mailbox and attempts to reschedule
// it, implementing the three-way reschedule-rights result: Failed if the
// receiver was already runnable, Acquired if the sender must enqueue it,
// or AcquiredWithTimeout if doing so also invalidates a pending timeout.
// Callers that must forward an invalidated timeout to the TimeoutWorker
// (the scheduler's process_send_message ABI entry point) call
// TryRescheduleFromSend directly instead, to recover the token.
func SendMessage(receiver *Process, msg *Message) reschedule.Rights {
	receiver.Mailbox.Push(msg)
	rights, _ := receiver.TryRescheduleFromSend()
	return rights
}

// FinishMessage is called from the process's own context when the current
// message handler returns. It reports whether the process has further
// pending messages and should be re-enqueued. If terminate is true, it
// instead records ActionTerminate on the owning scheduler thread via
// thread, so that the scheduler tears the process down, marks the process
// Completing, and returns false: the process must not free its own stack while still
// running on it, so teardown is deferred until the scheduler observes the
// action after switching back to its own stack.
func (p *Process) FinishMessage(thread ActionSetter, terminate bool) (more bool) {
	if terminate {
		thread.SetAction(ActionTerminate)
		p.setState(Completing)
		return false
	}

	if p.Mailbox.Len() > 0 {
		p.setState(Runnable)
		return true
	}

	p.setState(Suspended)
	return false
}

// BeginMessage transitions Runnable -> Completing on handler entry; this is
// an internal transition performed by the process's own goroutine, with no
// concurrent waker to race against.
func (p *Process) BeginMessage() {
	p.setState(Completing)
}
