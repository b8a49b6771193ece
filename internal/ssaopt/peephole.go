package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

const maxSelectRegionInstrs = 64

// peepholeBranchToSelect implements spec.md §4.2's "peephole select
// (branch-to-select for up to 64-instruction divergent regions)": a
// structured if/else diamond — header H branching to two single-entry,
// single-exit arms T and E that both rejoin at J — collapses to straight-
// line code when neither arm has an observable side effect: T and E's
// instructions execute unconditionally (cheap enough, and side-effect-free
// by construction), and J's phis become selects on H's condition.
//
// internal/ir's Phi convention (documented here since no phi-specific type
// exists yet): a join block's phi instruction's Srcs are ordered the same
// as the block's Preds slice, so Srcs[i] is the value arriving from
// Preds[i].
func peepholeBranchToSelect(m *ir.Module) bool {
	changed := false
	for _, href := range m.BlockOrder {
		h := m.Blocks.Get(href)
		if h.UnconditionalJump || h.Succs[0] == 0 || h.Succs[1] == 0 || h.Condition == 0 {
			continue
		}
		tref, eref := h.Succs[0], h.Succs[1]
		t, e := m.Blocks.Get(tref), m.Blocks.Get(eref)

		if len(t.Preds) != 1 || t.Preds[0] != href || len(e.Preds) != 1 || e.Preds[0] != href {
			continue
		}
		if t.Succs[0] == 0 || t.Succs[1] != 0 || e.Succs[0] == 0 || e.Succs[1] != 0 {
			continue
		}
		jref := t.Succs[0]
		if e.Succs[0] != jref {
			continue
		}
		j := m.Blocks.Get(jref)

		if !armIsEligible(m, t) || !armIsEligible(m, e) {
			continue
		}

		cond := m.Instrs.Get(h.Condition).Dst()

		predIdxT, predIdxE := -1, -1
		for i, p := range j.Preds {
			if p == tref {
				predIdxT = i
			}
			if p == eref {
				predIdxE = i
			}
		}
		if predIdxT == -1 || predIdxE == -1 {
			continue
		}

		ok := true
		j.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			if instr.Op != ir.OpPhi {
				return true
			}
			if len(instr.Srcs) <= predIdxT || len(instr.Srcs) <= predIdxE {
				ok = false
				return false
			}
			return true
		})
		if !ok {
			continue
		}

		moveAllInstrs(m, tref, href)
		moveAllInstrs(m, eref, href)

		j.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			if instr.Op != ir.OpPhi {
				return true
			}
			thenVal, elseVal := instr.Srcs[predIdxT], instr.Srcs[predIdxE]
			instr.Op = ir.OpSel
			instr.Srcs = []ir.Register{cond, thenVal, elseVal}
			return true
		})

		h.Succs[0], h.Succs[1] = jref, 0
		h.UnconditionalJump = true
		h.Condition = 0

		newPreds := make([]arena.Ref, 0, len(j.Preds))
		replaced := false
		for _, p := range j.Preds {
			if p == tref || p == eref {
				if !replaced {
					newPreds = append(newPreds, href)
					replaced = true
				}
				continue
			}
			newPreds = append(newPreds, p)
		}
		j.Preds = newPreds

		removeBlocks(m, tref, eref)
		changed = true
	}
	return changed
}

func armIsEligible(m *ir.Module, b *ir.Block) bool {
	count := 0
	ok := true
	b.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
		count++
		if instr.Op == ir.OpPhi || hasSideEffect(m, ref, instr) {
			ok = false
			return false
		}
		return true
	})
	return ok && count <= maxSelectRegionInstrs
}

// moveAllInstrs appends every instruction of src onto the tail of dst.
func moveAllInstrs(m *ir.Module, src, dst arena.Ref) {
	srcBlock := m.Blocks.Get(src)
	dstBlock := m.Blocks.Get(dst)
	var refs []arena.Ref
	srcBlock.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
		refs = append(refs, ref)
		return true
	})
	for _, ref := range refs {
		srcBlock.Remove(m.Instrs, ref)
		dstBlock.Append(m.Instrs, ref, dst)
	}
}

// removeBlocks drops the given blocks from the module's program order and
// renumbers the remaining blocks' Index fields to stay contiguous.
func removeBlocks(m *ir.Module, dead ...arena.Ref) {
	deadSet := map[arena.Ref]bool{}
	for _, d := range dead {
		deadSet[d] = true
	}
	kept := m.BlockOrder[:0]
	for _, b := range m.BlockOrder {
		if !deadSet[b] {
			kept = append(kept, b)
		}
	}
	m.BlockOrder = kept
	for i, b := range m.BlockOrder {
		m.Blocks.Get(b).Index = i
	}
}
