package lower

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// boolWidth is the register width used to carry 1-bit values (spec.md §4.1
// item 6: "1-bit values are represented as 0/1 in a 16-bit register").
const boolWidth = ir.Width16

// LowerCompareToBool wraps any comparison opcode so its destination is
// normalized to {0,1} rather than {0, all-ones}, resolving Open Question 1
// of spec.md §9 by construction: every boolean producer in this compiler
// goes through this function.
func LowerCompareToBool(m *ir.Module, block arena.Ref, cmp ir.Op, a, b ir.Register) ir.Register {
	dst := ir.SSAReg(m.AllocSSA(), boolWidth)
	ref := m.Emit(block, ir.Instruction{Op: cmp, Dsts: []ir.Register{dst}, Srcs: []ir.Register{a, b}})
	m.Predicates[ref] = true
	return dst
}

// LowerSelect implements select(cond, a, b) over a normalized bool cond.
func LowerSelect(m *ir.Module, block arena.Ref, cond, a, b ir.Register) ir.Register {
	dst := ir.SSAReg(m.AllocSSA(), a.Width)
	m.Emit(block, ir.Instruction{Op: ir.OpSel, Dsts: []ir.Register{dst}, Srcs: []ir.Register{cond, a, b}})
	return dst
}

// LowerBoolConvert implements the b2f/b2i/f2b/i2b family (spec.md §4.1 item
// 6: "compare-select sequences against 0").
func LowerBoolConvert(m *ir.Module, block arena.Ref, op ir.Op, src ir.Register) ir.Register {
	switch op {
	case ir.OpHIRB2F:
		return LowerSelect(m, block, src, ir.ImmFloatReg(1), ir.ImmFloatReg(0))
	case ir.OpHIRB2I:
		return LowerSelect(m, block, src, ir.ImmUintReg(1, ir.Width32), ir.ImmUintReg(0, ir.Width32))
	case ir.OpHIRF2B, ir.OpHIRI2B:
		return LowerCompareToBool(m, block, ir.OpCmpNE, src, ir.ImmUintReg(0, src.Width))
	default:
		panic("lower: LowerBoolConvert given a non-bool-conversion opcode")
	}
}

// LowerBitwiseBool emits and/or/xor/not over already-normalized {0,1}
// operands as plain integer bitwise ops (spec.md §4.1 item 6: "and/or/xor/
// not are emitted as integer bitwise").
func LowerBitwiseBool(m *ir.Module, block arena.Ref, op ir.Op, a, b ir.Register) ir.Register {
	dst := ir.SSAReg(m.AllocSSA(), boolWidth)
	srcs := []ir.Register{a}
	if op != ir.OpNot {
		srcs = append(srcs, b)
	}
	m.Emit(block, ir.Instruction{Op: op, Dsts: []ir.Register{dst}, Srcs: srcs})
	return dst
}
