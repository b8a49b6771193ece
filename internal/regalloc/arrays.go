package regalloc

import (
	"github.com/tiledgpu/ir3c/internal/ir"
)

// assignArrayBases lays out every module array at a fixed, element-width
// aligned half-register base before general coloring begins (spec.md §4.5:
// arrays are pre-colored to contiguous ranges and never touched by the
// general allocator's per-value coloring). Returns the set of half-slots
// the general allocator must treat as already occupied.
func assignArrayBases(m *ir.Module) map[int]bool {
	reserved := map[int]bool{}
	cursor := 0
	for _, a := range m.Arrays {
		unit := int(a.ElemWidth) / 8
		if unit == 0 {
			unit = 1
		}
		if rem := cursor % unit; rem != 0 {
			cursor += unit - rem
		}
		a.BaseReg = cursor
		slots := a.Length * halfSlotsPerElem(a.ElemWidth)
		for s := 0; s < slots; s++ {
			reserved[cursor+s] = true
		}
		cursor += slots
	}
	return reserved
}

func halfSlotsPerElem(w ir.Width) int {
	if w == ir.Width16 {
		return 1
	}
	return 2
}
