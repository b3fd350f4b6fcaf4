package bump

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockAllocateWithinBounds(t *testing.T) {
	block := NewBlock(16) // 128/8 size class equivalent from the reference test
	ptr1 := block.allocate(8)
	ptr2 := block.allocate(8)

	block.current = block.upper

	ptr3 := block.allocate(8)

	base := unsafe.Pointer(&block.mem[0])
	require.Equal(t, unsafe.Add(base, FirstLine*LineSize), ptr1)
	require.Equal(t, unsafe.Add(base, FirstLine*LineSize+8), ptr2)
	assert.Nil(t, ptr3)
}

func TestBlockLineIndexForPointer(t *testing.T) {
	block := NewBlock(16)
	ptr1 := block.allocate(8)
	ptr2 := block.allocate(8)
	ptr3 := unsafe.Add(block.endAddress(), -8)

	assert.Equal(t, FirstLine, block.lineIndexForPointer(ptr1))
	assert.Equal(t, FirstLine, block.lineIndexForPointer(ptr2))
	assert.Equal(t, LinesPerBlock-1, block.lineIndexForPointer(ptr3))
}

func TestBlockFindNextHole(t *testing.T) {
	block := NewBlock(64)
	hdr := block.header()

	hdr.reusableObjects[FirstLine+1].Add(4)

	assert.True(t, block.findNextHoleStartingAt(FirstLine))

	base := unsafe.Pointer(&block.mem[0])
	assert.Equal(t, unsafe.Add(base, (FirstLine+1)*LineSize), block.current)
	assert.Equal(t, unsafe.Add(block.current, LineSize), block.upper)

	ptr := block.allocate(8)
	require.NotNil(t, ptr)
	assert.Equal(t, FirstLine+1, block.lineIndexForPointer(ptr))
}

func TestAllocateStaysWithinBlockBoundsAndSizeAligned(t *testing.T) {
	a := NewAllocator(32)

	seen := make(map[uintptr]bool)
	base := uintptr(unsafe.Pointer(&a.head.mem[0]))
	lowerBound := base + uintptr(FirstLine*LineSize)

	for i := 0; i < 2000; i++ {
		ptr := a.Allocate()
		addr := uintptr(ptr)

		assert.False(t, seen[addr], "allocation overlap detected")
		seen[addr] = true

		assert.Zero(t, (addr-lowerBound)%32, "pointer must be size-class aligned")
		// Bounds are checked against whichever block currently owns addr.
		blockBase := addr &^ (BlockSize - 1)
		assert.GreaterOrEqual(t, addr, blockBase+uintptr(FirstLine*LineSize), "pointer below the block's first allocatable line")
		assert.Less(t, addr, blockBase+BlockSize, "pointer past the end of its block")
	}
}

func TestFreeAndReuse(t *testing.T) {
	a := NewAllocator(32)

	var ptrs []unsafe.Pointer
	valuesPerLine := LineSize / 32

	// Fill exactly one line's worth of allocations.
	for i := 0; i < valuesPerLine; i++ {
		ptrs = append(ptrs, a.Allocate())
	}

	for _, p := range ptrs {
		Free(p)
	}

	hdr := a.head.header()
	idx := a.head.lineIndexForPointer(ptrs[0])
	assert.Equal(t, hdr.valuesPerLine, hdr.reusableObjects[idx].Load(),
		"a fully freed line's counter must equal valuesPerLine before reuse")
}

func TestAllocatorReuseScenario(t *testing.T) {
	// Allocate 1024 size-32 objects, free every other line's worth of
	// objects entirely (so those lines' counters reach valuesPerLine and
	// become reusable holes), allocate 1024 more, and expect no new block
	// to have been chained: the reclaimed lines plus the block's remaining
	// untouched capacity cover the second batch.
	a := NewAllocator(32)
	valuesPerLine := LineSize / 32

	first := make([]unsafe.Pointer, 1024)
	for i := range first {
		first[i] = a.Allocate()
	}

	blocksBefore := countBlocks(a.head)

	for i := 0; i < len(first); i++ {
		line := i / valuesPerLine
		if line%2 == 0 {
			Free(first[i])
		}
	}

	for i := 0; i < 1024; i++ {
		a.Allocate()
	}

	assert.Equal(t, blocksBefore, countBlocks(a.head), "expected no new blocks to be chained")
}

func countBlocks(head *Block) int {
	n := 0
	for b := head; b != nil; b = b.next {
		n++
	}
	return n
}
