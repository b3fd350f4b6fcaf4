// Package bump implements a fixed-size-class bump allocator over 64 KiB,
// self-aligned blocks divided into 256-byte lines with per-line
// reusable-object counters, modeled on an Immix-style allocator.
package bump

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// BlockSize is the size of each block, and its required alignment.
	BlockSize = 64 * 1024

	// LineSize is the size of a single line.
	LineSize = 256

	// LinesPerBlock is the number of lines in a block.
	LinesPerBlock = BlockSize / LineSize
)

// blockHeader occupies the first lines of every block. Its size must round
// up to a whole number of lines so that FirstLine (the first line objects
// may be allocated into) is computed correctly.
type blockHeader struct {
	// reusableObjects tracks, per line, how many objects have been freed
	// since the line was last claimed as a hole. A line is available for
	// reuse when its counter equals valuesPerLine.
	reusableObjects [LinesPerBlock]atomic.Uint32

	block *Block

	valuesPerLine uint32
}

// FirstLine is the first line index objects may be allocated into; earlier
// lines belong to the header and are never handed out.
var FirstLine = (int(unsafe.Sizeof(blockHeader{})) + LineSize - 1) / LineSize

// Block is a 64 KiB, 64 KiB-aligned region of memory divided into lines,
// the unit of allocation for a BumpAllocator.
type Block struct {
	mem []byte

	// upper is the exclusive bound of the current hole being bumped into.
	upper unsafe.Pointer
	// current is the next address allocate() will hand out.
	current unsafe.Pointer

	next *Block
}

// NewBlock allocates and initializes a new, self-aligned Block for objects
// of the given size class.
func NewBlock(size uint32) *Block {
	mem := mmapAlignedBlock()

	b := &Block{mem: mem}
	hdr := b.header()
	hdr.block = b
	hdr.valuesPerLine = uint32(LineSize) / size

	base := unsafe.Pointer(&mem[0])
	b.upper = unsafe.Add(base, BlockSize)
	b.current = unsafe.Add(base, FirstLine*LineSize)

	return b
}

// mmapAlignedBlock maps a region large enough to guarantee a BlockSize
// aligned sub-region, then trims the mapping down to that sub-region — the
// standard "overmap and trim" technique for self-aligned allocations,
// mirroring the teacher's page-rounded mmap arithmetic for descriptor
// regions.
func mmapAlignedBlock() []byte {
	raw, err := unix.Mmap(-1, 0, BlockSize*2, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		panic("bump: failed to map block memory: " + err.Error())
	}

	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + BlockSize - 1) &^ (BlockSize - 1)
	offset := aligned - base

	if offset > 0 {
		if err := unix.Munmap(raw[:offset]); err != nil {
			panic("bump: failed to trim block head: " + err.Error())
		}
	}
	trimmed := raw[offset : offset+BlockSize]
	if tailStart := offset + BlockSize; int(tailStart) < len(raw) {
		if err := unix.Munmap(raw[tailStart:]); err != nil {
			panic("bump: failed to trim block tail: " + err.Error())
		}
	}

	return trimmed
}

func (b *Block) header() *blockHeader {
	return (*blockHeader)(unsafe.Pointer(&b.mem[0]))
}

func (b *Block) endAddress() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&b.mem[0]), BlockSize)
}

func (b *Block) pointerForLine(line int) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&b.mem[0]), LineSize*line)
}

// lineIndexForPointer recovers the line index owning ptr.
func (b *Block) lineIndexForPointer(ptr unsafe.Pointer) int {
	base := uintptr(unsafe.Pointer(&b.mem[0]))
	lineAddr := uintptr(ptr) &^ (LineSize - 1)
	return int((lineAddr - base) / LineSize)
}

// allocate bumps current by size, returning nil if the current hole is
// exhausted.
func (b *Block) allocate(size uintptr) unsafe.Pointer {
	for {
		ptr := b.current
		next := unsafe.Add(ptr, size)

		if uintptr(next) > uintptr(b.upper) {
			if b.upper == b.endAddress() {
				return nil
			}

			idx := b.lineIndexForPointer(next)
			if b.findNextHoleStartingAt(idx) {
				continue
			}
			return nil
		}

		b.current = next
		return ptr
	}
}

// findFirstHole scans from the first allocatable line.
func (b *Block) findFirstHole() bool {
	return b.findNextHoleStartingAt(FirstLine)
}

// findNextHoleStartingAt scans lines from the given index for a contiguous
// run of available lines, setting current/upper to its bounds. It returns
// whether a hole was found.
func (b *Block) findNextHoleStartingAt(line int) bool {
	found := false
	start := b.endAddress()
	stop := b.endAddress()
	hdr := b.header()

	for line < LinesPerBlock {
		if lineAvailable(hdr, line) {
			found = true
			start = b.pointerForLine(line)
			break
		}
		line++
	}

	line++

	for line < LinesPerBlock {
		if lineAvailable(hdr, line) {
			line++
		} else {
			stop = b.pointerForLine(line)
			break
		}
	}

	b.current = start
	b.upper = stop
	return found
}

// lineAvailable reports and claims a reusable line via CAS: a line is
// available iff its counter equals valuesPerLine, in which case the CAS
// resets it to zero and the claim succeeds exactly once.
func lineAvailable(hdr *blockHeader, index int) bool {
	counter := &hdr.reusableObjects[index]
	return counter.CompareAndSwap(hdr.valuesPerLine, 0)
}

// firstReusableLine scans the whole block (outside the header) for a line
// whose counter has reached valuesPerLine, without claiming it.
func (b *Block) firstReusableLine() (int, bool) {
	hdr := b.header()
	for i := FirstLine; i < LinesPerBlock; i++ {
		if hdr.reusableObjects[i].Load() == hdr.valuesPerLine {
			return i, true
		}
	}
	return 0, false
}

// Free recovers the owning block header from ptr and atomically increments
// the reusable counter of ptr's line. Safe to call concurrently with
// Allocate and with other Frees.
func Free(ptr unsafe.Pointer) {
	hdr := headerForPointer(ptr)
	idx := hdr.block.lineIndexForPointer(ptr)
	hdr.reusableObjects[idx].Add(1)
}

func headerForPointer(ptr unsafe.Pointer) *blockHeader {
	addr := uintptr(ptr) &^ (BlockSize - 1)
	return (*blockHeader)(unsafe.Pointer(addr))
}

// unmap releases the block's memory. Callers must ensure no live pointers
// into the block remain in use.
func (b *Block) unmap() error {
	return unix.Munmap(b.mem)
}
