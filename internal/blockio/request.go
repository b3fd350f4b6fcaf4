package blockio

import "github.com/ehrlich-b/processrt/internal/process"

// Op identifies which file operation a Request performs.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpOpenAt
	OpClose
)

// Request describes one pending file operation, submitted by
// internal/abi's File* entry points and completed asynchronously by the
// Worker's completion loop.
type Request struct {
	Op Op

	FD     int32
	Buf    []byte
	Offset uint64

	Path  string
	Flags uint32
	Mode  uint32

	Waiter *process.Process

	// userData identifies this request's CQE among others in flight;
	// assigned by Worker.Submit.
	userData uint64

	// Res and Err carry the outcome, set by the completion loop before the
	// waiting process is rescheduled.
	Res int32
	Err error
}
