package processtest

import (
	"github.com/ehrlich-b/processrt/internal/abi"
	"github.com/ehrlich-b/processrt/internal/process"
)

// LoopHandler builds the generic message-dispatch loop a real compiled
// process body would inline: pop the next mailbox message, invoke it,
// decide (via onMessage) whether this was the process's last message, and
// either keep draining the mailbox without switching out (FinishMessage
// reported more pending) or suspend until the next send. Tests that only
// care about message content and ordering build an abi.HandlerFunc from
// this instead of re-deriving the pop/BeginMessage/FinishMessage dance
// every time.
func LoopHandler(onMessage func(msg *process.Message) (terminate bool)) abi.HandlerFunc {
	return func(rc *abi.RunContext) {
		for {
			msg, ok := rc.Process.Mailbox.Pop()
			if !ok {
				rc.Process.Suspend(nil)
				rc.Yield()
				continue
			}

			rc.Process.BeginMessage()
			terminate := onMessage(msg)
			more := abi.ProcessFinishMessage(rc, terminate)
			if terminate {
				return
			}
			if !more {
				rc.Yield()
			}
		}
	}
}
