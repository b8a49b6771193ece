package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// copyPropagate implements the "copy propagation" step of spec.md §4.2: a
// plain `mov` (no modifiers, no array membership on either side) is
// forwarded into every use of its destination. Modifier folding across a
// chain of movs (abs/neg combination, double-negation cancellation) is C8's
// job (internal/copyprop, post-RA); this pass only forwards plain copies so
// repeated rounds converge without needing that algebra here.
func copyPropagate(m *ir.Module) bool {
	replace := map[uint32]ir.Register{}
	forEachInstr(m, func(_, ref arena.Ref, instr *ir.Instruction) bool {
		if instr.Op != ir.OpMov || len(instr.Srcs) != 1 || hasSideEffect(m, ref, instr) {
			return true
		}
		dst := instr.Dst()
		src := instr.Srcs[0]
		if dst.IsSSA() && src.IsSSA() && src.Mods == 0 && src.ArrayID == 0 {
			replace[dst.Num] = src
		}
		return true
	})
	if len(replace) == 0 {
		return false
	}

	changed := false
	forEachInstr(m, func(_, _ arena.Ref, instr *ir.Instruction) bool {
		for i, s := range instr.Srcs {
			if !s.IsSSA() {
				continue
			}
			if newSrc, ok := replace[s.Num]; ok {
				merged := newSrc
				merged.Mods |= s.Mods
				merged.WrMask = s.WrMask
				instr.Srcs[i] = merged
				changed = true
			}
		}
		return true
	})
	return changed
}
