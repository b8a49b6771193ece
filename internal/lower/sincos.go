package lower

import (
	"math"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

const tau = 2 * math.Pi

// LowerSin implements spec.md §4.1 item 7: scale x to turns via
// x * 1/(2*pi), multiply by 4, then the pair sin_pt_1 (quadrant fixup) x
// sin_pt_2 (sinc in the first quadrant, expressed in turns). The turns value
// is not reduced with fract before the multiply by 4; sin_pt_1 receives the
// unreduced product.
func LowerSin(m *ir.Module, block arena.Ref, x ir.Register) ir.Register {
	turns := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMul,
		Dsts: []ir.Register{turns},
		Srcs: []ir.Register{x, ir.ImmFloatReg(math.Float32bits(1 / tau))},
	})
	return emitSinPtPair(m, block, turns)
}

// LowerCos implements cos(x) = sin_agx(x + tau/4) from the same spec item.
func LowerCos(m *ir.Module, block arena.Ref, x ir.Register) ir.Register {
	shifted := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpAdd,
		Dsts: []ir.Register{shifted},
		Srcs: []ir.Register{x, ir.ImmFloatReg(math.Float32bits(tau / 4))},
	})
	return LowerSin(m, block, shifted)
}

func emitSinPtPair(m *ir.Module, block arena.Ref, turns ir.Register) ir.Register {
	quad := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMul,
		Dsts: []ir.Register{quad},
		Srcs: []ir.Register{turns, ir.ImmFloatReg(math.Float32bits(4))},
	})

	fixup := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpSinPt1, Dsts: []ir.Register{fixup}, Srcs: []ir.Register{quad}})

	result := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpSinPt2, Dsts: []ir.Register{result}, Srcs: []ir.Register{fixup}})
	return result
}
