package process

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/processrt/internal/reschedule"
)

type fakeThread struct {
	action Action
}

func (t *fakeThread) SetAction(a Action) { t.action = a }

func TestMailboxOrderingSingleSender(t *testing.T) {
	var mb Mailbox
	for i := 0; i < 100; i++ {
		mb.Push(&Message{Arity: uint8(i % 256)})
	}

	for i := 0; i < 100; i++ {
		msg, ok := mb.Pop()
		require.True(t, ok)
		assert.Equal(t, uint8(i%256), msg.Arity)
	}

	_, ok := mb.Pop()
	assert.False(t, ok)
}

func TestMailboxOrderingConcurrentSenders(t *testing.T) {
	receiver := newTestProcess()
	const senders = 3
	const perSender = 100

	var wg sync.WaitGroup
	wg.Add(senders)
	for s := 0; s < senders; s++ {
		go func(sender int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				tag := uint8(sender)
				data := unsafe.Pointer(&tag)
				SendMessage(receiver, &Message{Data: data, Arity: uint8(i % 256)})
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, senders*perSender, receiver.Mailbox.Len())

	// Messages from any one sender come out in the order it sent them.
	next := make([]int, senders)
	for i := 0; i < senders*perSender; i++ {
		msg, ok := receiver.Mailbox.Pop()
		require.True(t, ok)
		sender := int(*(*uint8)(msg.Data))
		assert.Equal(t, uint8(next[sender]%256), msg.Arity)
		next[sender]++
	}
}

func TestSendMessageReturnsAcquiredOnce(t *testing.T) {
	p := newTestProcess()
	rights := SendMessage(p, &Message{})
	assert.Equal(t, reschedule.Acquired, rights)

	p.setState(Suspended)
	// A second send while already runnable observes Failed until re-suspended.
	p2 := newTestProcess()
	p2.setState(Runnable)
	assert.Equal(t, reschedule.Failed, SendMessage(p2, &Message{}))
}

func TestFinishMessageReschedulesWhenPending(t *testing.T) {
	p := newTestProcess()
	p.BeginMessage()
	p.Mailbox.Push(&Message{})

	thread := &fakeThread{}
	more := p.FinishMessage(thread, false)

	assert.True(t, more)
	assert.Equal(t, Runnable, p.State())
	assert.Equal(t, ActionContinue, thread.action)
}

func TestFinishMessageSuspendsWhenEmpty(t *testing.T) {
	p := newTestProcess()
	p.BeginMessage()

	thread := &fakeThread{}
	more := p.FinishMessage(thread, false)

	assert.False(t, more)
	assert.Equal(t, Suspended, p.State())
}

func TestFinishMessageTerminateDefersToThread(t *testing.T) {
	p := newTestProcess()
	p.BeginMessage()

	thread := &fakeThread{}
	more := p.FinishMessage(thread, true)

	assert.False(t, more)
	assert.Equal(t, ActionTerminate, thread.action)
}

func TestPanicFormatWithFrames(t *testing.T) {
	p := newTestProcess()
	p.Header.Type = nil
	p.CallStack.Push("foo.rt", 10, "main")
	p.CallStack.Push("", 0, "inlined")

	out := formatPanic(p, "boom")

	assert.Contains(t, out, "Stack trace (the most recent call comes last):")
	assert.Contains(t, out, "foo.rt:10 in main")
	assert.Contains(t, out, "?? in inlined")
	assert.Contains(t, out, "panicked: boom")
}
