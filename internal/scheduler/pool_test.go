package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/processrt/internal/context"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/stackpool"
)

// TestPoolRunsSpawnedProcessToTermination exercises a real process end to
// end: scheduled onto the pool's global injector, switched in by the one
// primary thread, running its goroutine body to a FinishMessage(terminate),
// and having its stack reclaimed by the owning thread's pool once the
// scheduler observes ActionTerminate.
func TestPoolRunsSpawnedProcessToTermination(t *testing.T) {
	stack := stackpool.New(stackpool.DefaultUsableSize, 4096)
	t.Cleanup(func() { _ = stack.Unmap() })
	p := process.New(nil, stack)

	ran := make(chan struct{})
	context.Spawn(p, func(yield func()) {
		p.BeginMessage()
		setter := context.CurrentActionSetter(p)
		p.FinishMessage(setter, true)
		close(ran)
	})

	pool := NewPool(Config{ProcessThreads: 1, BackupThreads: 1}, 1)
	owner := pool.Threads()[0]
	pool.Start()

	pool.Schedule(p)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("process never ran")
	}

	pool.Stop()
	pool.Wait()

	assert.Equal(t, process.Completing, p.State())
	assert.Equal(t, 1, owner.Stacks.Len(), "terminated process's stack returned to its thread's pool")
}

// TestPoolRequeuesProcessThatYields verifies a process that yields instead
// of terminating gets pushed back onto its thread's local queue and runs
// again on a later switch, rather than being torn down.
func TestPoolRequeuesProcessThatYields(t *testing.T) {
	stack := stackpool.New(stackpool.DefaultUsableSize, 4096)
	t.Cleanup(func() { _ = stack.Unmap() })
	p := process.New(nil, stack)

	var runs int
	done := make(chan struct{})
	context.Spawn(p, func(yield func()) {
		runs++
		if runs < 2 {
			yield()
			runs++
		}
		setter := context.CurrentActionSetter(p)
		p.FinishMessage(setter, true)
		close(done)
	})

	pool := NewPool(Config{ProcessThreads: 1, BackupThreads: 1}, 1)
	pool.Start()
	pool.Schedule(p)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process never completed")
	}

	pool.Stop()
	pool.Wait()

	assert.Equal(t, 2, runs)
}
