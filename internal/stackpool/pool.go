package stackpool

import "os"

// SHRINK_AGE is the epoch-age in wrapped ticks after which a reusable stack
// is considered too old to keep around. Arbitrary, chosen to be good enough
// to prevent excessive shrinking.
const SHRINK_AGE = 10

// MIN_STACKS is the minimum number of pooled stacks before Shrink will even
// consider trimming the pool.
const MIN_STACKS = 4

// DefaultUsableSize is the default usable stack size handed to new Stacks,
// excluding the private and guard pages.
const DefaultUsableSize = 1 << 20 // 1 MiB

// Pool owns a deque of recycled Stacks, paired with the check-in epoch at
// which each was returned. One Pool exists per scheduler thread; it is
// never shared across threads (see internal/scheduler).
type Pool struct {
	usableSize int
	pageSize   int

	stacks []*Stack
	epochs []uint16
	epoch  uint16
}

// NewPool creates a Pool producing stacks with the given usable size.
func NewPool(usableSize int) *Pool {
	return &Pool{
		usableSize: usableSize,
		pageSize:   os.Getpagesize(),
	}
}

// Alloc pops a recycled stack, bumping the pool's epoch, or creates a new
// one if the pool is empty.
func (p *Pool) Alloc() *Stack {
	n := len(p.stacks)
	if n == 0 {
		return New(p.usableSize, p.pageSize)
	}

	stack := p.stacks[n-1]
	p.stacks = p.stacks[:n-1]
	p.epochs = p.epochs[:len(p.epochs)-1]
	p.epoch++
	return stack
}

// Add returns a stack to the pool for reuse, stamped with the current
// epoch.
func (p *Pool) Add(s *Stack) {
	p.stacks = append(p.stacks, s)
	p.epochs = append(p.epochs, p.epoch)
}

// Shrink trims the pool to at most half its current size, removing only
// stacks whose epoch age is at least SHRINK_AGE, and does nothing if the
// pool has fewer than MIN_STACKS entries. After shrinking, every remaining
// stack's epoch is reset to the pool's current epoch so consecutive calls
// do not cascade into removing everything.
func (p *Pool) Shrink() {
	n := len(p.stacks)
	if n < MIN_STACKS {
		return
	}

	trimmable := 0
	for _, e := range p.epochs {
		if epochAge(p.epoch, e) >= SHRINK_AGE {
			trimmable++
		}
	}

	max := n / 2
	if trimmable < max {
		max = trimmable
	}
	if max == 0 {
		return
	}

	for i := 0; i < max; i++ {
		if err := p.stacks[i].Unmap(); err != nil {
			// Nothing useful to do with a failed munmap on a shrink path;
			// the mapping is leaked but the pool stays consistent.
			_ = err
		}
	}

	p.stacks = append([]*Stack(nil), p.stacks[max:]...)
	p.epochs = p.epochs[max:]

	for i := range p.epochs {
		p.epochs[i] = p.epoch
	}
}

// Len reports the number of stacks currently held for reuse.
func (p *Pool) Len() int {
	return len(p.stacks)
}

// epochAge computes the wrapped distance between two uint16 epochs.
func epochAge(now, then uint16) uint16 {
	if now >= then {
		return now - then
	}
	return then - now
}
