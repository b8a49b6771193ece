// half.go isolates this packer's one use of github.com/mewmew/float: a HIR
// constant folded to a half-precision immediate sometimes still carries its
// bits as a float32 (ir.ImmFloat) rather than already-narrowed binary16
// (ir.ImmHalf) when internal/lower built it from a generic constant-folding
// path. The packer narrows it here, at the boundary where the bits are
// about to leave the module for good.
//
// github.com/mewmew/float has no usage anywhere in the retrieved reference
// corpus to confirm its exact surface against; the call below is this
// core's best-effort reading of its documented binary16 conversion API
// (see DESIGN.md's per-module grounding entry for internal/pack).
package pack

import (
	"math"

	"github.com/mewmew/float/float16"
)

// narrowToHalfBits converts a float32 bit pattern to its IEEE-754 binary16
// representation.
func narrowToHalfBits(f32Bits uint32) uint16 {
	return float16.NewFromFloat32(math.Float32frombits(f32Bits)).Bits()
}

// widenFromHalfBits recovers a float32 bit pattern from a binary16 value,
// the inverse of narrowToHalfBits. Nothing in the module calls it.
func widenFromHalfBits(bits uint16) uint32 {
	return math.Float32bits(float16.NewFromBits(bits).Float32())
}
