// Package stackpool implements guarded, fixed-size process stacks and a
// per-scheduler-thread pool that recycles them.
package stackpool

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/processrt/internal/logging"
)

// Stack is a single mmap'd memory region laid out, low to high, as:
// one private page, one guard page (PROT_NONE), then the usable stack
// growing downward from the high end.
//
// The mapping is page-aligned only, not aligned to its own size, so the
// private page cannot be found by masking a stack pointer (`sp & -SIZE`);
// internal/context reaches it through PrivatePagePtr and keeps it pointing
// at the currently running process.
type Stack struct {
	mem []byte
}

// totalStackSize rounds page+page+usable up to the next multiple of page.
func totalStackSize(usable, page int) int {
	total := page + page + usable
	return (total + (page - 1)) &^ (page - 1)
}

// New maps a new guarded stack of the given usable size. Failure to install
// the guard page is treated as fatal: there is nothing a caller can safely
// do in response, so New logs and exits the process rather than returning
// an error, mirroring the Rust reference's .expect() at the same call site.
func New(usable, page int) *Stack {
	size := totalStackSize(usable, page)

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		logging.Default().Errorf("failed to map process stack of %d bytes: %v", size, err)
		os.Exit(1)
	}

	if err := unix.Mprotect(mem[page:2*page], unix.PROT_NONE); err != nil {
		logging.Default().Errorf(
			"failed to set up the stack's guard page: %v "+
				"(you may need to increase the number of memory map areas allowed, "+
				"see vm.max_map_count)", err,
		)
		os.Exit(1)
	}

	return &Stack{mem: mem}
}

// PrivatePagePtr returns the base address of the stack's private page.
func (s *Stack) PrivatePagePtr() unsafe.Pointer {
	return unsafe.Pointer(&s.mem[0])
}

// StackTopPtr returns the address immediately past the end of the mapping
// (base + len), the starting stack pointer for a freshly resumed process.
func (s *Stack) StackTopPtr() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&s.mem[0]), len(s.mem))
}

// Len returns the total size of the mapping in bytes.
func (s *Stack) Len() int {
	return len(s.mem)
}

// Unmap releases the stack's memory mapping. Callers must ensure no process
// is currently running on this stack.
func (s *Stack) Unmap() error {
	if s.mem == nil {
		return nil
	}
	err := unix.Munmap(s.mem)
	s.mem = nil
	if err != nil {
		return fmt.Errorf("failed to unmap stack: %w", err)
	}
	return nil
}
