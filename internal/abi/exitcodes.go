// Package abi implements the runtime's ABI surface: the entry points
// generated code (or, here, a hand-written HandlerFunc standing in for
// it) calls to create processes, send and finish messages, suspend and
// resume, and perform socket/TLS/file I/O. It is the layer that wires
// internal/process, internal/scheduler, internal/context,
// internal/timeout, internal/netpoll, internal/blockio, and
// internal/tlsio together.
package abi

// Exit codes the runtime reports to its host OS process.
const (
	// ExitOK is a clean shutdown: every process terminated, the scheduler
	// pool drained.
	ExitOK = 0
	// ExitPanic follows an unrecovered process panic (internal/process.Panic).
	ExitPanic = 101
)
