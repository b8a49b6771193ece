package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// removeDeadPhis is the "remove-phis of dead values" step of spec.md §4.2.
// It is a thin, explicitly named wrapper over the same liveness test DCE
// uses: a phi with an unused destination is exactly as dead as any other
// unused instruction, so this just runs DCE restricted to OpPhi.
func removeDeadPhis(m *ir.Module) bool {
	used := make(map[uint32]bool)
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		for _, s := range instr.Srcs {
			if s.IsSSA() {
				used[s.Num] = true
			}
		}
		return true
	})

	changed := false
	var toRemove []struct{ block, ref arena.Ref }
	forEachInstr(m, func(block, ref arena.Ref, instr *ir.Instruction) bool {
		if instr.Op != ir.OpPhi || hasSideEffect(m, ref, instr) {
			return true
		}
		dst := instr.Dst()
		if dst.IsSSA() && !used[dst.Num] {
			toRemove = append(toRemove, struct{ block, ref arena.Ref }{block, ref})
		}
		return true
	})
	for _, r := range toRemove {
		m.Blocks.Get(r.block).Remove(m.Instrs, r.ref)
		changed = true
	}
	return changed
}

// phiToScalar implements "phi-to-scalar" (spec.md §4.2): a phi whose
// sources are all the same SSA value, or all equal immediates, carries no
// actual merge decision and collapses to a mov.
func phiToScalar(m *ir.Module) bool {
	changed := false
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		if instr.Op != ir.OpPhi || len(instr.Srcs) == 0 {
			return true
		}
		first := instr.Srcs[0]
		for _, s := range instr.Srcs[1:] {
			if s != first {
				return true
			}
		}
		instr.Op = ir.OpMov
		instr.Srcs = []ir.Register{first}
		changed = true
		return true
	})
	return changed
}
