// Package dispatch builds per-type method tables: a power-of-two slot
// array assigned by a deterministic hash with linear probing, matching the
// ahead-of-time compiler's expectations for dynamic dispatch.
package dispatch

import (
	"hash/maphash"
	"sort"

	"github.com/ehrlich-b/processrt/internal/typeinfo"
)

// MethodTableMinSize is the minimum slot count for any type's table, even
// if it has only a handful of methods.
const MethodTableMinSize = 64

// MethodTableFactor scales the rounded-up method count to leave room for
// collision-free linear probing in the common case.
const MethodTableFactor = 4

// seed is generated once at package init, standing in for "a deterministic
// per-process hasher... seeded once at program start." maphash is the
// stdlib answer to this exact problem; no pack example ships a
// non-cryptographic string hash library (documented in DESIGN.md).
var seed = maphash.MakeSeed()

// hashMethod combines a method's name and shape encoding into the hash used
// for slot placement.
func hashMethod(name, shape string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(name)
	h.WriteByte(0)
	h.WriteString(shape)
	return h.Sum64()
}

// roundUpPow2 rounds n up to the next power of two (n=0 rounds to 1).
func roundUpPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// slotCount computes a type's table size per spec: max(round_up_pow2(n)*4, 64).
func slotCount(methodCount int) int {
	n := roundUpPow2(methodCount) * MethodTableFactor
	if n < MethodTableMinSize {
		return MethodTableMinSize
	}
	return n
}

// BuildTables assigns a Table to every descriptor in types, processing
// types in name-sorted order for determinism. Each type's dropper is
// placed at slot 0; a closure's call method is placed at slot 1; all other
// methods linear-probe from hash&(count-1).
func BuildTables(types []*typeinfo.Descriptor) {
	sorted := append([]*typeinfo.Descriptor(nil), types...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, d := range sorted {
		buildTable(d)
	}
}

func buildTable(d *typeinfo.Descriptor) {
	count := slotCount(len(d.Methods))
	slots := make([]typeinfo.Slot, count)
	for i := range slots {
		slots[i].MethodIdx = -1
	}

	occupied := make([]bool, count)

	placeAt := func(idx, methodIdx int, hash uint64) {
		slots[idx] = typeinfo.Slot{Hash: hash, MethodIdx: methodIdx}
		occupied[idx] = true
	}

	for i, m := range d.Methods {
		hash := hashMethod(m.Name, m.ShapeEncoding)

		switch {
		case m.IsDropper:
			placeAt(0, i, hash)
			continue
		case d.IsClosure && m.IsClosureCall:
			placeAt(1, i, hash)
			continue
		}
	}

	for i, m := range d.Methods {
		if m.IsDropper || (d.IsClosure && m.IsClosureCall) {
			continue
		}

		hash := hashMethod(m.Name, m.ShapeEncoding)
		start := int(hash) & (count - 1)
		idx := start
		collided := false

		for occupied[idx] {
			collided = true
			idx = (idx + 1) & (count - 1)
			if idx == start {
				panic("dispatch: method table exhausted during probing, size computation is wrong")
			}
		}

		placeAt(idx, i, hash)
		slots[idx].Collided = collided
	}

	d.Table = &typeinfo.Table{Slots: slots}
}
