package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

func isImmUint(r ir.Register, v uint32) bool {
	return r.IsImm() && r.ImmKind == ir.ImmUint && uint32(r.ImmBits) == v
}

// algebraicRewrite implements the identity-simplification half of spec.md
// §4.2's "algebraic rewriting": additive/multiplicative identities that are
// always safe to apply regardless of what the fixed-point loop has already
// done.
func algebraicRewrite(m *ir.Module) bool {
	changed := false
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		if len(instr.Srcs) != 2 {
			return true
		}
		a, b := instr.Srcs[0], instr.Srcs[1]
		switch instr.Op {
		case ir.OpAdd, ir.OpOr, ir.OpXor:
			if isImmUint(b, 0) {
				collapseToMov(instr, a)
				changed = true
			} else if isImmUint(a, 0) {
				collapseToMov(instr, b)
				changed = true
			}
		case ir.OpSub:
			if isImmUint(b, 0) {
				collapseToMov(instr, a)
				changed = true
			}
		case ir.OpMul:
			if isImmUint(b, 1) {
				collapseToMov(instr, a)
				changed = true
			} else if isImmUint(a, 1) {
				collapseToMov(instr, b)
				changed = true
			} else if isImmUint(a, 0) || isImmUint(b, 0) {
				instr.Op = ir.OpMovImm
				instr.Srcs = []ir.Register{ir.ImmUintReg(0, instr.Dst().Width)}
				changed = true
			}
		case ir.OpAnd:
			if isImmUint(b, ^uint32(0)) {
				collapseToMov(instr, a)
				changed = true
			} else if isImmUint(a, ^uint32(0)) {
				collapseToMov(instr, b)
				changed = true
			} else if isImmUint(a, 0) || isImmUint(b, 0) {
				instr.Op = ir.OpMovImm
				instr.Srcs = []ir.Register{ir.ImmUintReg(0, instr.Dst().Width)}
				changed = true
			}
		case ir.OpShl, ir.OpShr, ir.OpUShr:
			if isImmUint(b, 0) {
				collapseToMov(instr, a)
				changed = true
			}
		}
		return true
	})
	return changed
}

func collapseToMov(instr *ir.Instruction, src ir.Register) {
	instr.Op = ir.OpMov
	instr.Srcs = []ir.Register{src}
}

// lateAlgebraicIdentities implements the late pass's "a + (-b) -> a - b"
// rewrite (spec.md §4.2): an add whose second operand carries ModNeg
// becomes a sub of the un-negated operand, which is how this family of
// rewrites is expressed once source modifiers exist (post C2 lowering).
func lateAlgebraicIdentities(m *ir.Module) bool {
	changed := false
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		if instr.Op != ir.OpAdd || len(instr.Srcs) != 2 {
			return true
		}
		b := instr.Srcs[1]
		if b.Mods&ir.ModNeg != 0 {
			instr.Op = ir.OpSub
			instr.Srcs[1] = b.NegateMod()
			changed = true
		}
		return true
	})
	return changed
}

// moveSink implements "a move-sink that pulls constants, UBO loads, and
// comparisons toward their uses" (spec.md §4.2): for each block, any
// OpMovImm/OpLoadConstIR3 instruction with exactly one use within the same
// block is relocated to sit immediately before that use, shortening its
// live range ahead of register allocation.
func moveSink(m *ir.Module) bool {
	changed := false
	for _, bref := range m.BlockOrder {
		block := m.Blocks.Get(bref)

		uses := map[uint32][]arena.Ref{}
		block.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			for _, s := range instr.Srcs {
				if s.IsSSA() {
					uses[s.Num] = append(uses[s.Num], ref)
				}
			}
			return true
		})

		var candidates []arena.Ref
		block.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			if instr.Op != ir.OpMovImm && instr.Op != ir.OpLoadConstIR3 {
				return true
			}
			dst := instr.Dst()
			if dst.IsSSA() && len(uses[dst.Num]) == 1 {
				candidates = append(candidates, ref)
			}
			return true
		})

		for _, ref := range candidates {
			instr := m.Instrs.Get(ref)
			useRef := uses[instr.Dst().Num][0]
			if useRef == ref {
				continue
			}
			block.Remove(m.Instrs, ref)
			block.InsertBefore(m.Instrs, ref, useRef, bref)
			changed = true
		}
	}
	return changed
}
