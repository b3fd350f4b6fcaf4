// Package integration drives the runtime end to end, against the real
// scheduler pool, timeout worker, and network poller worker — no build tag
// gating, since unlike the teacher's ublk integration suite these tests
// need no root privilege or kernel module, only the machine this module
// itself builds on.
package integration

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/processtest"
)

// echoPayload carries a value through a message and a channel to report it
// back on, standing in for the reply mechanism a real message handler body
// would compile to.
type echoPayload struct {
	value int
	out   chan int
}

func echoMethod(_ *process.Process, data unsafe.Pointer) {
	p := (*echoPayload)(data)
	p.out <- p.value
}

// TestEchoRoundTrip is scenario 1: a process receives one message and
// echoes its payload back, exercising spawn, first-message delivery, and
// FinishMessage's terminate path end to end.
func TestEchoRoundTrip(t *testing.T) {
	rt := processtest.NewHarness(t)
	thread := rt.Pool.Threads()[0]

	out := make(chan int, 1)
	payload := &echoPayload{value: 42, out: out}

	handler := processtest.LoopHandler(func(msg *process.Message) bool {
		msg.Method(nil, msg.Data)
		return true // one message, then terminate
	})

	p := processtest.Spawn(rt, thread, nil, handler)
	p.Mailbox.Push(&process.Message{Method: echoMethod, Data: unsafe.Pointer(payload)})
	rt.Pool.Schedule(p)

	select {
	case v := <-out:
		assert.Equal(t, 42, v)
	case <-time.After(processtest.DefaultWaitTimeout):
		t.Fatal("echo reply never arrived")
	}
}
