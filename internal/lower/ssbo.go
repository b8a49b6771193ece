package lower

import (
	"math/bits"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// ShiftForBitSize returns log2(bitSize/8), the shift spec.md §4.1 item 8
// uses to convert a byte offset to an element offset.
func ShiftForBitSize(bitSize int) uint32 {
	return uint32(bits.TrailingZeros(uint(bitSize / 8)))
}

// LowerByteOffset converts a byte-addressed SSBO/image offset to an element
// offset (spec.md §4.1 item 8, and P5: "for every SSBO load with aligned
// byte-offset k*4, the emitted element offset is k and no runtime shift is
// present").
//
// Two cases:
//  1. offset is a compile-time constant: shift it at compile time, emit no
//     runtime instruction at all — this is what makes P5 hold.
//  2. any other offset: one ushr by the element shift is emitted and its
//     result returned with a zero constant part. The offset's defining
//     instruction is not inspected: a shift feeding the offset is not fused
//     with this one, and an iadd(const, x) offset is not split into a
//     compile-time constant and a runtime part. FuseShiftOfShift and
//     SplitConstAndRuntime below compute those pieces but are not called
//     from here.
func LowerByteOffset(m *ir.Module, block arena.Ref, byteOffset ir.Register, bitSize int) (elemOffset ir.Register, constPart uint32) {
	shift := ShiftForBitSize(bitSize)

	if byteOffset.IsImm() && byteOffset.ImmKind == ir.ImmUint {
		return ir.Register{}, uint32(byteOffset.ImmBits) >> shift
	}

	dst := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpUShr,
		Dsts: []ir.Register{dst},
		Srcs: []ir.Register{byteOffset, ir.ImmUintReg(shift, ir.Width32)},
	})
	return dst, 0
}

// FuseShiftOfShift implements the "if the offset defining instruction is
// itself a shift, the shifts are fused" rule: given an existing ushr by
// innerShift feeding a new ushr by outerShift, returns the single combined
// shift amount.
func FuseShiftOfShift(innerShift, outerShift uint32) uint32 {
	return innerShift + outerShift
}

// SplitConstAndRuntime implements the iadd(const, x) fusion rule: given a
// byte offset that is const + runtimeX, returns the pre-shifted constant
// (for compile-time merge into an opcode's immediate-offset field) and the
// register to scale independently by `shift` at runtime.
func SplitConstAndRuntime(constByte uint32, runtimeX ir.Register, bitSize int) (constElem uint32, runtime ir.Register) {
	shift := ShiftForBitSize(bitSize)
	return constByte >> shift, runtimeX
}
