package regalloc

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// resolvePhis lowers every remaining OpPhi (merge points internal/cflow's
// if/loop templates did not flatten — e.g. a join with more than two
// predecessors) into one OpParallelCopy per predecessor, emitted at that
// predecessor's block end, and collapses the phi itself into OpMeta.
// Grounded on internal/cflow/ifconvert.go's identical collapse-in-place
// approach, generalized from its fixed two-predecessor diamond to an
// arbitrary predecessor count. Running this before liveness/coloring keeps
// the rest of the package working over an already-phi-free program, the
// same simplification cflow's output gives ssaopt-style passes.
func resolvePhis(m *ir.Module) {
	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		var phis []arena.Ref
		b.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			if instr.Op == ir.OpPhi {
				phis = append(phis, ref)
			}
			return true
		})
		for _, pref := range phis {
			phi := m.Instrs.Get(pref)
			dst := phi.Dst()
			for i, pred := range b.Preds {
				if i >= len(phi.Srcs) {
					break
				}
				m.Emit(pred, ir.Instruction{
					Op:   ir.OpParallelCopy,
					Dsts: []ir.Register{dst},
					Srcs: []ir.Register{phi.Srcs[i]},
				})
			}
			phi = m.Instrs.Get(pref)
			phi.Op = ir.OpMeta
			phi.Dsts = nil
			phi.Srcs = nil
		}
	}
}
