package cflow

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

const maxIfRegionInstrs = 4096

// ifConvert finds structured if/else diamonds — a header H with a
// condition and two successors T, E that each fall straight through
// (single predecessor H, single successor J) to a common join J — and
// flattens them into H using the predicated template of spec.md §4.3:
//
//	if_icmp cond != 0; <T instructions>; else_icmp cond == 0; <E
//	instructions>; pop_exec 1
//
// Unlike internal/ssaopt's peepholeBranchToSelect, this never requires the
// arms to be side-effect free: under predicated execution both arms
// genuinely execute, masked, so a discard or a store in either arm is
// correct as written. A join block's phi resolves to two parallel copies
// into the phi's own destination — one placed at the end of the then
// section, one at the end of the else section — rather than a select,
// since the value may depend on a side effect only one arm performed.
//
// Each round converts the innermost diamonds first (an arm with an
// unresolved nested branch is not yet single-successor, so it is skipped
// until a later round flattens it); Run calls this to a fixed point.
func ifConvert(m *ir.Module) bool {
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
		if t.Succs[0] == 0 || t.Succs[1] != 0 {
			continue
		}
		if e.Succs[0] == 0 || e.Succs[1] != 0 {
			continue
		}
		jref := t.Succs[0]
		if e.Succs[0] != jref {
			continue
		}
		if countInstrs(m, tref)+countInstrs(m, eref) > maxIfRegionInstrs {
			continue
		}
		j := m.Blocks.Get(jref)

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
		shapeOK := true
		j.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			if instr.Op == ir.OpPhi && (len(instr.Srcs) <= predIdxT || len(instr.Srcs) <= predIdxE) {
				shapeOK = false
				return false
			}
			return true
		})
		if !shapeOK {
			continue
		}

		cond := m.Instrs.Get(h.Condition).Dst()

		m.Emit(href, ir.Instruction{Op: ir.OpIfICmp, Srcs: []ir.Register{cond}})
		moveAllInstrs(m, tref, href)

		// Insert the then-side parallel copies for every join phi right
		// before else_icmp, i.e. at the tail of the then section.
		var phiRefs []arena.Ref
		j.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			if instr.Op == ir.OpPhi {
				phiRefs = append(phiRefs, ref)
			}
			return true
		})
		for _, pref := range phiRefs {
			phi := m.Instrs.Get(pref)
			m.Emit(href, ir.Instruction{Op: ir.OpParallelCopy, Dsts: []ir.Register{phi.Dst()}, Srcs: []ir.Register{phi.Srcs[predIdxT]}})
		}

		m.Emit(href, ir.Instruction{Op: ir.OpElseICmp, Srcs: []ir.Register{cond}})
		moveAllInstrs(m, eref, href)

		for _, pref := range phiRefs {
			phi := m.Instrs.Get(pref)
			m.Emit(href, ir.Instruction{Op: ir.OpParallelCopy, Dsts: []ir.Register{phi.Dst()}, Srcs: []ir.Register{phi.Srcs[predIdxE]}})
			phi = m.Instrs.Get(pref)
			phi.Op = ir.OpMeta
			phi.Dsts = nil
			phi.Srcs = nil
		}

		m.Emit(href, ir.Instruction{Op: ir.OpPopExec, Srcs: []ir.Register{ir.ImmUintReg(1, ir.Width32)}})

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

func countInstrs(m *ir.Module, block arena.Ref) int {
	n := 0
	m.Blocks.Get(block).Instrs(m.Instrs, func(_ arena.Ref, _ *ir.Instruction) bool {
		n++
		return true
	})
	return n
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
