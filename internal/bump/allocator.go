package bump

import (
	"unsafe"

	"github.com/ehrlich-b/processrt/internal/metrics"
)

// SizeClasses are the four fixed allocation sizes a scheduler thread
// maintains one Allocator for each of.
var SizeClasses = [4]uint32{16, 32, 64, 128}

// Allocator is a bump allocator for a single fixed-size class. It owns a
// linked list of Blocks, is single-owner for Allocate and hole-finding, and
// is never shared between threads; Free may be called concurrently from
// any goroutine.
type Allocator struct {
	size uint32
	head *Block
	tail *Block

	observer metrics.Observer
}

// NewAllocator creates an allocator for the given size class (must be a
// power of two, at most LineSize).
func NewAllocator(size uint32) *Allocator {
	head := NewBlock(size)
	return &Allocator{size: size, head: head, tail: head}
}

// NewAllocatorClasses builds one Allocator per fixed size class, as used by
// each scheduler thread.
func NewAllocatorClasses() [4]*Allocator {
	var out [4]*Allocator
	for i, s := range SizeClasses {
		out[i] = NewAllocator(s)
	}
	return out
}

// SetObserver installs a metrics observer for blocks-chained/holes-claimed
// counters.
func (a *Allocator) SetObserver(o metrics.Observer) {
	a.observer = o
}

// Allocate returns a pointer to a freshly allocated, size-class-sized
// object. It never returns nil: if the tail block's hole is exhausted, it
// falls through, in order: find the next hole in the tail, step to a
// successor block and find its first hole, scan head→tail for any block
// with a reusable line, or append a brand new block.
func (a *Allocator) Allocate() unsafe.Pointer {
	size := uintptr(a.size)

	if ptr := a.tail.allocate(size); ptr != nil {
		return ptr
	}

	if a.findNextBlock() || a.findReusableBlock() {
		ptr := a.tail.allocate(size)
		if ptr == nil {
			panic("bump: hole-finding claimed a hole too small for the size class")
		}
		return ptr
	}

	newBlock := NewBlock(a.size)
	a.tail.next = newBlock
	a.tail = newBlock
	a.recordBlockChained()

	ptr := a.tail.allocate(size)
	if ptr == nil {
		panic("bump: size class does not fit in an empty block")
	}
	return ptr
}

// findNextBlock walks from the current tail towards the end of the list,
// looking for the first successor with an available hole.
func (a *Allocator) findNextBlock() bool {
	for a.tail.next != nil {
		a.tail = a.tail.next
		if a.tail.findFirstHole() {
			return true
		}
	}
	return false
}

// findReusableBlock scans the whole list head→tail for any block with at
// least one reusable line and adopts it as the new tail.
func (a *Allocator) findReusableBlock() bool {
	for blk := a.head; blk != nil; blk = blk.next {
		if line, ok := blk.firstReusableLine(); ok {
			a.tail = blk
			a.recordHoleClaimed()
			return blk.findNextHoleStartingAt(line)
		}
	}
	return false
}

func (a *Allocator) recordBlockChained() {
	if a.observer != nil {
		a.observer.ObserveBlockChained()
	}
}

func (a *Allocator) recordHoleClaimed() {
	if a.observer != nil {
		a.observer.ObserveHoleClaimed()
	}
}
