package integration

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/processrt/internal/abi"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/processtest"
)

type orderedPayload struct {
	value     int
	terminate bool
}

func recordMethod(order *[]int) process.NativeAsyncMethod {
	return func(_ *process.Process, data unsafe.Pointer) {
		p := (*orderedPayload)(data)
		*order = append(*order, p.value)
	}
}

// TestMailboxPreservesSenderOrder is scenario 3: messages from a single
// sender are observed by the receiver in the order they were sent, even
// though delivery and processing happen on different goroutines and the
// receiver oscillates between Runnable and Suspended between messages.
func TestMailboxPreservesSenderOrder(t *testing.T) {
	rt := processtest.NewHarness(t)
	thread := rt.Pool.Threads()[0]

	var order []int
	done := make(chan struct{})
	method := recordMethod(&order)

	handler := processtest.LoopHandler(func(msg *process.Message) bool {
		msg.Method(nil, msg.Data)
		p := (*orderedPayload)(msg.Data)
		if p.terminate {
			close(done)
			return true
		}
		return false
	})

	newMsg := func(v int, terminate bool) *process.Message {
		return &process.Message{Method: method, Data: unsafe.Pointer(&orderedPayload{value: v, terminate: terminate})}
	}

	p := processtest.Spawn(rt, thread, nil, handler)
	p.Mailbox.Push(newMsg(1, false))
	rt.Pool.Schedule(p)

	for v := 2; v <= 5; v++ {
		abi.ProcessSendMessage(rt.Pool, rt.Timeouts, p, newMsg(v, false))
	}
	abi.ProcessSendMessage(rt.Pool, rt.Timeouts, p, newMsg(6, true))

	select {
	case <-done:
	case <-time.After(processtest.DefaultWaitTimeout):
		t.Fatal("receiver never terminated")
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, order)
}
