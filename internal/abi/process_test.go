package abi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/scheduler"
	"github.com/ehrlich-b/processrt/internal/timeout"
)

type fakeObserver struct {
	expiredCalls int
}

func (f *fakeObserver) ObserveMessageSent()        {}
func (f *fakeObserver) ObserveReschedule(bool)      {}
func (f *fakeObserver) ObserveTimeoutFired()        {}
func (f *fakeObserver) ObserveTimeoutExpired()      { f.expiredCalls++ }
func (f *fakeObserver) ObserveSwitch(uint64)        {}
func (f *fakeObserver) ObserveBlockChained()        {}
func (f *fakeObserver) ObserveHoleClaimed()         {}
func (f *fakeObserver) ObserveStackPoolHit()        {}
func (f *fakeObserver) ObserveStackPoolMiss()       {}
func (f *fakeObserver) ObserveStackPoolShrink(int)  {}

func TestProcessSendMessageEnqueuesAndReschedules(t *testing.T) {
	receiver := &process.Process{}
	receiver.Suspend(nil)

	timeouts := timeout.NewWorker(make(chan timeout.Waiter, 1))
	pool := scheduler.NewPool(scheduler.Config{ProcessThreads: 1, BackupThreads: 0}, 1)

	ProcessSendMessage(pool, timeouts, receiver, &process.Message{})

	assert.Equal(t, process.Runnable, receiver.State())
	assert.Equal(t, 1, receiver.Mailbox.Len())
}

func TestProcessSendMessageReportsTimeoutExpiryToObserver(t *testing.T) {
	receiver := &process.Process{}
	tok := timeout.NewToken(time.Hour)
	receiver.Suspend(tok)

	timeouts := timeout.NewWorker(make(chan timeout.Waiter, 1))
	obs := &fakeObserver{}
	timeouts.SetObserver(obs)

	pool := scheduler.NewPool(scheduler.Config{ProcessThreads: 1, BackupThreads: 0}, 1)

	ProcessSendMessage(pool, timeouts, receiver, &process.Message{})

	assert.Equal(t, 1, obs.expiredCalls)
	assert.Nil(t, receiver.CurrentToken())
}

func TestProcessNewRunsHandlerToTermination(t *testing.T) {
	pool := scheduler.NewPool(scheduler.Config{ProcessThreads: 1, BackupThreads: 1}, 1)
	thread := pool.Threads()[0]
	timeouts := timeout.NewWorker(make(chan timeout.Waiter, 1))

	ran := make(chan struct{})
	handler := func(rc *RunContext) {
		ProcessYield(rc)
		ProcessFinishMessage(rc, true)
		close(ran)
	}

	p := ProcessNew(nil, thread, handler, pool, timeouts, nil, nil)
	pool.Start()
	pool.Schedule(p)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	pool.Stop()
	pool.Wait()

	assert.Equal(t, process.Completing, p.State())
}
