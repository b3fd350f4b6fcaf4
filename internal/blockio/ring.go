// Package blockio implements the runtime's blocking-file-operation fast
// path: an io_uring submission/completion loop, backed by
// github.com/pawelgaczynski/giouring, that one dedicated goroutine
// (Worker.Run) drives, so in-flight SQEs are only ever handled by one loop.
// FileRead/FileWrite/FileOpen/FileClose (internal/abi) submit a Request
// here instead of blocking the calling goroutine.
package blockio

import (
	"fmt"

	"github.com/pawelgaczynski/giouring"
)

// DefaultEntries is the submission/completion queue depth used when Config
// doesn't specify one.
const DefaultEntries = 256

// Config holds the ring's sizing.
type Config struct {
	Entries uint32
}

// Ring wraps a giouring.Ring, the one place this package touches the
// kernel io_uring interface directly.
type Ring struct {
	ring *giouring.Ring
}

// NewRing sets up a new io_uring instance sized per cfg.
func NewRing(cfg Config) (*Ring, error) {
	entries := cfg.Entries
	if entries == 0 {
		entries = DefaultEntries
	}
	r, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("blockio: create ring: %w", err)
	}
	return &Ring{ring: r}, nil
}

// Close tears down the ring.
func (r *Ring) Close() {
	r.ring.QueueExit()
}

// prepareSQE hands back the next free submission queue entry, blocking
// submission for req until the caller flushes it. Returns nil if the
// queue is momentarily full; the caller retries on the next loop tick.
func (r *Ring) prepareSQE() *giouring.SubmissionQueueEntry {
	return r.ring.GetSQE()
}

func (r *Ring) submit() (uint, error) {
	return r.ring.Submit()
}

// popCQE returns the next completed event, or ok=false if none is ready.
func (r *Ring) popCQE() (*giouring.CompletionQueueEvent, bool) {
	cqe, err := r.ring.PeekCQE()
	if err != nil || cqe == nil {
		return nil, false
	}
	return cqe, true
}

func (r *Ring) markSeen(cqe *giouring.CompletionQueueEvent) {
	r.ring.CQESeen(cqe)
}
