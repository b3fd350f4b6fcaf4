package processtest

import (
	"testing"
	"time"

	"github.com/ehrlich-b/processrt/internal/abi"
	"github.com/ehrlich-b/processrt/internal/process"
	"github.com/ehrlich-b/processrt/internal/runtime"
	"github.com/ehrlich-b/processrt/internal/scheduler"
	"github.com/ehrlich-b/processrt/internal/typeinfo"
)

// DefaultWaitTimeout bounds how long Harness's Wait helpers block before
// failing the test, so a deadlocked scenario fails fast instead of hanging
// the suite.
const DefaultWaitTimeout = 5 * time.Second

// NewHarness starts a single-primary-thread, single-backup-thread Runtime
// (deterministic enough that scheduling order is easy to reason about in a
// test, while still exercising the real work-stealing/blocking-handoff
// machinery rather than a fake) and registers its teardown on t.Cleanup.
func NewHarness(t *testing.T) *runtime.Runtime {
	t.Helper()

	rt, err := runtime.New(runtime.RuntimeParams{ProcessThreads: 1, BackupThreads: 1})
	if err != nil {
		t.Fatalf("processtest: runtime.New: %v", err)
	}
	rt.Start()

	t.Cleanup(func() {
		rt.Stop()
		rt.Wait()
	})

	return rt
}

// Spawn allocates a process of the given type on thread (typically one of
// rt.Pool.Threads()), wired to rt's workers, but does not schedule it —
// callers that need to prime the new process's mailbox before its first
// run (as a freshly spawned process starts Runnable, not Suspended) push
// directly via p.Mailbox.Push and then call rt.Pool.Schedule themselves.
func Spawn(rt *runtime.Runtime, thread *scheduler.Thread, typ *typeinfo.Descriptor, handler abi.HandlerFunc) *process.Process {
	return abi.ProcessNew(typ, thread, handler, rt.Pool, rt.Timeouts, rt.Poller, rt.Files)
}

// WaitFor blocks until done is closed or DefaultWaitTimeout elapses,
// failing t in the latter case. Tests use this to wait on a channel a
// process handler closes when it reaches the point under test, instead of
// sleeping a fixed duration.
func WaitFor(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(DefaultWaitTimeout):
		t.Fatalf("processtest: timed out waiting for %s", what)
	}
}
