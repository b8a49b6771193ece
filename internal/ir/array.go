package ir

import "github.com/tiledgpu/ir3c/internal/arena"

// Array is a contiguous, runtime-indexable register range (spec.md §3.1).
type Array struct {
	ID        uint32
	Length    int       // in registers
	LastWrite arena.Ref // instruction reference, for write/read ordering
	BaseReg   int       // physical base register, assigned pre-RA (§4.5)
	ElemWidth Width
}

// Aligned reports whether the array's chosen BaseReg respects "divisible by
// the element width" from spec.md §4.5.
func (a *Array) Aligned() bool {
	unit := int(a.ElemWidth) / 8
	if unit == 0 {
		return true
	}
	return a.BaseReg%unit == 0
}
