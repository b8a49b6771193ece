package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// deadCodeElim implements the "DCE on non-observable instructions" step of
// spec.md §4.2: an instruction is removed when its result is used nowhere
// and it has no barrier class, predicate write, or explicit Keep (spec.md
// §3.3's removal rule).
func deadCodeElim(m *ir.Module) bool {
	used := make(map[uint32]bool)
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		for _, s := range instr.Srcs {
			if s.IsSSA() {
				used[s.Num] = true
			}
		}
		if instr.Address != 0 {
			used[m.Instrs.Get(instr.Address).Dst().Num] = true
		}
		return true
	})

	changed := false
	var toRemove []struct{ block, ref arena.Ref }
	forEachInstr(m, func(block, ref arena.Ref, instr *ir.Instruction) bool {
		if hasSideEffect(m, ref, instr) {
			return true
		}
		dst := instr.Dst()
		if !dst.IsSSA() {
			return true
		}
		if used[dst.Num] {
			return true
		}
		toRemove = append(toRemove, struct{ block, ref arena.Ref }{block, ref})
		return true
	})
	for _, r := range toRemove {
		m.Blocks.Get(r.block).Remove(m.Instrs, r.ref)
		changed = true
	}
	return changed
}
