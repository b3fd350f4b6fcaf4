package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/processrt/internal/typeinfo"
)

func TestSlotCountMeetsMinimumAndFactor(t *testing.T) {
	assert.Equal(t, MethodTableMinSize, slotCount(0))
	assert.Equal(t, MethodTableMinSize, slotCount(3))
	assert.Equal(t, 64, slotCount(16))
	assert.Equal(t, 128, slotCount(17))
}

func TestBuildTableDropperAtSlotZero(t *testing.T) {
	d := &typeinfo.Descriptor{
		Name: "Counter",
		Methods: []typeinfo.Method{
			{Name: "drop", IsDropper: true},
			{Name: "increment"},
			{Name: "value"},
		},
	}

	BuildTables([]*typeinfo.Descriptor{d})

	require.NotNil(t, d.Table)
	assert.Equal(t, 0, d.Table.Slots[0].MethodIdx)
	assert.Equal(t, "drop", d.Methods[d.Table.Slots[0].MethodIdx].Name)
}

func TestBuildTableClosureCallAtSlotOne(t *testing.T) {
	d := &typeinfo.Descriptor{
		Name:      "Closure",
		IsClosure: true,
		Methods: []typeinfo.Method{
			{Name: "drop", IsDropper: true},
			{Name: "call", IsClosureCall: true},
		},
	}

	BuildTables([]*typeinfo.Descriptor{d})

	assert.Equal(t, 1, d.Table.Slots[1].MethodIdx)
	assert.Equal(t, "call", d.Methods[d.Table.Slots[1].MethodIdx].Name)
}

func TestBuildTableNoOverlappingSlots(t *testing.T) {
	methods := []typeinfo.Method{{Name: "drop", IsDropper: true}}
	for i := 0; i < 40; i++ {
		methods = append(methods, typeinfo.Method{Name: randomName(i)})
	}

	d := &typeinfo.Descriptor{Name: "Wide", Methods: methods}
	BuildTables([]*typeinfo.Descriptor{d})

	seen := make(map[int]bool)
	for _, slot := range d.Table.Slots {
		if slot.MethodIdx < 0 {
			continue
		}
		assert.False(t, seen[slot.MethodIdx], "method assigned to more than one slot")
		seen[slot.MethodIdx] = true
	}
	assert.Equal(t, len(methods), len(seen))
}

func randomName(i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%26]) + string(letters[(i*7)%26]) + string(letters[(i*13)%26])
}
