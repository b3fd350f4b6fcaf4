package abi

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/processrt/internal/blockio"
	"github.com/ehrlich-b/processrt/internal/context"
	"github.com/ehrlich-b/processrt/internal/netpoll"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/reschedule"
	"github.com/ehrlich-b/processrt/internal/scheduler"
	"github.com/ehrlich-b/processrt/internal/timeout"
	"github.com/ehrlich-b/processrt/internal/typeinfo"
)

// ProcessNew allocates a stack from thread's pool, creates the process,
// gives it its dedicated goroutine (running handler), and returns it
// unscheduled: the caller decides when to hand it to pool.Schedule.
func ProcessNew(
	typ *typeinfo.Descriptor,
	thread *scheduler.Thread,
	handler HandlerFunc,
	pool *scheduler.Pool,
	timeouts *timeout.Worker,
	poller netpoll.Poller,
	files *blockio.Worker,
) *process.Process {
	stack := thread.Stacks.Alloc()
	p := process.New(typ, stack)

	context.Spawn(p, func(yield func()) {
		rc := &RunContext{
			Process:  p,
			yield:    yield,
			Pool:     pool,
			Timeouts: timeouts,
			Poller:   poller,
			Files:    files,
		}
		handler(rc)
	})

	return p
}

// ProcessSendMessage appends msg to receiver's mailbox and, if the send
// wins reschedule rights, hands receiver to the pool. Recovers an
// invalidated timeout token itself (TryRescheduleFromSend, not the
// convenience process.SendMessage) and reports it to timeouts first, so
// the TimeoutWorker never dispatches a stale heap entry for a process the
// send already rescheduled (spec.md §4.4/§4.8's ordering invariant).
func ProcessSendMessage(pool *scheduler.Pool, timeouts *timeout.Worker, receiver *process.Process, msg *process.Message) {
	receiver.Mailbox.Push(msg)

	rights, invalidated := receiver.TryRescheduleFromSend()
	switch rights {
	case reschedule.Failed:
		return
	case reschedule.AcquiredWithTimeout:
		timeouts.Expire(invalidated)
	}
	pool.Schedule(receiver)
}

// ProcessFinishMessage is called from the process's own goroutine when
// its current message handler returns. It recovers the calling thread via
// the context package's per-switch association and defers to
// process.FinishMessage.
func ProcessFinishMessage(rc *RunContext, terminate bool) (more bool) {
	return rc.Process.FinishMessage(currentThread(rc.Process), terminate)
}

// ProcessYield pushes the process back onto its thread's local queue (by
// returning control without changing lifecycle state) and switches out.
func ProcessYield(rc *RunContext) {
	rc.Yield()
}

// ProcessSuspend sets a timed suspension of the given duration, hands the
// token to the TimeoutWorker, and switches out. CurrentToken is already
// nil by the time Yield returns: both reschedule paths
// (TryRescheduleFromSend/ForIO and TryRescheduleAfterTimeout) clear
// timeoutPtr as part of winning the wakeup race.
func ProcessSuspend(rc *RunContext, nanos int64) {
	tok := timeout.NewToken(time.Duration(nanos))
	rc.Process.Suspend(tok)
	rc.Timeouts.Suspend(rc.Process, tok)
	rc.Yield()
}

// ProcessPanic prints the stack trace and exits the whole OS process with
// status 101. Never returns.
func ProcessPanic(rc *RunContext, msg string) {
	rc.Process.Panic(msg)
}

// ProcessWaitForValue implements a futex-style wait: if lock currently
// equals cur, it's swapped to new and the process suspends (WaitingValue)
// until woken by whoever next changes the lock; if lock has already moved
// on, the wait is skipped and it returns immediately. waited reports
// which happened.
func ProcessWaitForValue(rc *RunContext, lock *atomic.Int64, cur, newVal int64) (waited bool) {
	if !lock.CompareAndSwap(cur, newVal) {
		return false
	}
	rc.Process.WaitForValue(nil)
	rc.Yield()
	return true
}

// ProcessWaitForValueUntil is ProcessWaitForValue with a deadline: it also
// registers a timeout and reports whether the wait ended because that
// deadline passed (rather than because the value changed). The token
// carries no fired-reason flag, so expired is inferred by comparing the
// deadline against the time the process resumed.
func ProcessWaitForValueUntil(rc *RunContext, lock *atomic.Int64, cur, newVal int64, nanos int64) (waited, expired bool) {
	if !lock.CompareAndSwap(cur, newVal) {
		return false, false
	}

	tok := timeout.NewToken(time.Duration(nanos))
	rc.Process.WaitForValue(tok)
	rc.Timeouts.Suspend(rc.Process, tok)
	rc.Yield()

	_, stillPending := tok.RemainingUntil(time.Now())
	return true, !stillPending
}
