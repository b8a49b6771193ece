package copyprop

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// resolveSplitCombine implements spec.md §4.7: "split and combine pseudo
// ops become either no-ops (when their operands were allocated to
// consecutive registers) or explicit moves (when RA could not align them)."
func resolveSplitCombine(m *ir.Module, bref arena.Ref) {
	b := m.Blocks.Get(bref)
	var targets []arena.Ref
	b.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
		if instr.Op == ir.OpSplit || instr.Op == ir.OpCombine {
			targets = append(targets, ref)
		}
		return true
	})

	for _, ref := range targets {
		instr := m.Instrs.Get(ref)
		if consecutive(instr) {
			instr.Op = ir.OpMeta
			instr.Dsts = nil
			instr.Srcs = nil
			continue
		}
		for i, dst := range instr.Dsts {
			if i >= len(instr.Srcs) {
				break
			}
			m.EmitBefore(bref, ref, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{dst}, Srcs: []ir.Register{instr.Srcs[i]}})
		}
		instr = m.Instrs.Get(ref)
		instr.Op = ir.OpMeta
		instr.Dsts = nil
		instr.Srcs = nil
	}
}

// consecutive reports whether every (dst, src) pair of a split/combine
// pseudo-op was colored so that dst.Num (or src.Num, for combine) lands
// exactly where the shuffle needs it, i.e. the i-th destination occupies
// physical slot base+i for 16-bit values and base+2i for wider ones (slots
// are half-register units). A real consecutive allocation makes the whole
// pseudo-op a no-op; anything else needs explicit moves.
func consecutive(instr *ir.Instruction) bool {
	if len(instr.Dsts) == 0 || len(instr.Dsts) != len(instr.Srcs) {
		return false
	}
	base, ok := baseOf(instr.Op, instr)
	if !ok {
		return false
	}
	for i, dst := range instr.Dsts {
		src := instr.Srcs[i]
		if !dst.IsPhys() || !src.IsPhys() {
			return false
		}
		if dst.Num != src.Num {
			return false
		}
		step := uint32(1)
		if dst.Width != ir.Width16 {
			step = 2
		}
		if dst.Num != base+uint32(i)*step {
			return false
		}
	}
	return true
}

func baseOf(op ir.Op, instr *ir.Instruction) (uint32, bool) {
	if len(instr.Dsts) == 0 || !instr.Dsts[0].IsPhys() {
		return 0, false
	}
	return instr.Dsts[0].Num, true
}
