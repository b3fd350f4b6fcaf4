package blockio

import (
	"testing"
	"time"

	"github.com/pawelgaczynski/giouring"
	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/timeout"
)

func newSuspendedProcess() *process.Process {
	p := &process.Process{}
	p.Suspend(nil)
	return p
}

type fakeExpirer struct {
	calls []string
}

func (f *fakeExpirer) Expire(tok *timeout.Token) {
	f.calls = append(f.calls, "expire")
}

func TestWorkerCompleteReschedulesWaitingProcess(t *testing.T) {
	p := newSuspendedProcess()
	toReschedule := make(chan *process.Process, 1)
	expirer := &fakeExpirer{}

	w := NewWorker(nil, toReschedule, expirer)
	req := &Request{Op: OpRead, Waiter: p, userData: 1}
	w.pending[1] = req

	w.complete(&giouring.CompletionQueueEvent{UserData: 1, Res: 4})

	assert.Equal(t, int32(4), req.Res)
	assert.Nil(t, req.Err)

	select {
	case got := <-toReschedule:
		assert.Same(t, p, got)
	default:
		t.Fatal("expected process to be rescheduled")
	}
}

func TestWorkerCompleteRecordsErrnoOnNegativeResult(t *testing.T) {
	p := newSuspendedProcess()
	toReschedule := make(chan *process.Process, 1)
	w := NewWorker(nil, toReschedule, &fakeExpirer{})

	req := &Request{Op: OpRead, Waiter: p, userData: 2}
	w.pending[2] = req

	w.complete(&giouring.CompletionQueueEvent{UserData: 2, Res: -9}) // -EBADF

	assert.Error(t, req.Err)
}

func TestWorkerCompleteReportsExpiryBeforeScheduling(t *testing.T) {
	p := newSuspendedProcess()
	tok := timeout.NewToken(time.Hour)
	p.Suspend(tok)

	toReschedule := make(chan *process.Process, 1)
	expirer := &fakeExpirer{}
	w := NewWorker(nil, toReschedule, expirer)

	req := &Request{Op: OpRead, Waiter: p, userData: 3}
	w.pending[3] = req

	w.complete(&giouring.CompletionQueueEvent{UserData: 3, Res: 1})

	assert.Equal(t, []string{"expire"}, expirer.calls)
	select {
	case got := <-toReschedule:
		assert.Same(t, p, got)
	default:
		t.Fatal("expected process to be rescheduled after expiry was reported")
	}
}

func TestWorkerCompleteIgnoresUnknownUserData(t *testing.T) {
	toReschedule := make(chan *process.Process, 1)
	w := NewWorker(nil, toReschedule, &fakeExpirer{})

	w.complete(&giouring.CompletionQueueEvent{UserData: 99, Res: 0})

	select {
	case <-toReschedule:
		t.Fatal("no request was pending for this completion")
	default:
	}
}
