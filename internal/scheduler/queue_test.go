package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/processrt/internal/process"
)

func TestQueuePushInternalAndPop(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.HasLocalJobs())

	p := &process.Process{}
	q.PushInternal(p)
	assert.True(t, q.HasLocalJobs())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueuePushExternal(t *testing.T) {
	q := NewQueue()
	p := &process.Process{}

	q.PushExternal(p)
	assert.True(t, q.HasExternalJobs())

	got, ok := q.PopExternal()
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.False(t, q.HasExternalJobs())
}

func TestQueueStealInto(t *testing.T) {
	src := NewQueue()
	dst := NewQueue()

	assert.False(t, src.StealInto(dst))

	procs := make([]*process.Process, 4)
	for i := range procs {
		procs[i] = &process.Process{}
		src.PushInternal(procs[i])
	}

	require.True(t, src.StealInto(dst))
	assert.True(t, dst.HasLocalJobs())

	stolenCount := 0
	for {
		if _, ok := dst.Pop(); ok {
			stolenCount++
		} else {
			break
		}
	}
	assert.Equal(t, 2, stolenCount, "half-steal of 4 jobs moves 2")

	remaining := 0
	for {
		if _, ok := src.Pop(); ok {
			remaining++
		} else {
			break
		}
	}
	assert.Equal(t, 2, remaining)
}

func TestQueueMoveExternalJobs(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3; i++ {
		q.PushExternal(&process.Process{})
	}

	assert.True(t, q.MoveExternalJobs())
	assert.False(t, q.HasExternalJobs())

	count := 0
	for {
		if _, ok := q.Pop(); ok {
			count++
		} else {
			break
		}
	}
	assert.Equal(t, 3, count)
}
