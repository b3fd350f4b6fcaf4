package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/processrt/internal/process"
)

func TestThreadSetActionTakeActionResetsToContinue(t *testing.T) {
	th := NewThread(0, 1)

	assert.Equal(t, process.ActionContinue, th.TakeAction(), "default action is Continue")

	th.SetAction(process.ActionTerminate)
	assert.Equal(t, process.ActionTerminate, th.TakeAction())
	assert.Equal(t, process.ActionContinue, th.TakeAction(), "TakeAction resets the pending action")
}

func TestThreadExclusiveModeMovesPendingWorkToGlobal(t *testing.T) {
	th := NewThread(0, 1)
	global := NewQueue()

	p1, p2 := &process.Process{}, &process.Process{}
	th.Queue.PushInternal(p1)
	th.Queue.PushExternal(p2)

	assert.Equal(t, ModeNormal, th.currentMode())

	th.EnterExclusiveMode(global)
	assert.Equal(t, ModeExclusive, th.currentMode())
	assert.False(t, th.Queue.HasLocalJobs())
	assert.False(t, th.Queue.HasExternalJobs())

	seen := map[*process.Process]bool{}
	for {
		p, ok := global.PopExternal()
		if !ok {
			break
		}
		seen[p] = true
	}
	assert.True(t, seen[p1])
	assert.True(t, seen[p2])

	th.LeaveExclusiveMode()
	assert.Equal(t, ModeNormal, th.currentMode())
}

func TestThreadBlockingFlag(t *testing.T) {
	th := NewThread(0, 1)

	assert.False(t, th.IsBlocking())
	th.StartBlocking()
	assert.True(t, th.IsBlocking())
	th.StopBlocking()
	assert.False(t, th.IsBlocking())
}
