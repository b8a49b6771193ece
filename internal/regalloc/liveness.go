package regalloc

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// liveness holds the per-block live-in/live-out sets, keyed by SSA number.
type liveness struct {
	liveIn  map[arena.Ref]map[uint32]bool
	liveOut map[arena.Ref]map[uint32]bool
}

// computeLiveness runs the standard backward dataflow fixed point:
// liveOut[b] = union(liveIn[s] for s in succ(b)); liveIn[b] = use[b] ∪
// (liveOut[b] - def[b]).
func computeLiveness(m *ir.Module) *liveness {
	use := map[arena.Ref]map[uint32]bool{}
	def := map[arena.Ref]map[uint32]bool{}

	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		blockUse := map[uint32]bool{}
		blockDef := map[uint32]bool{}
		b.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			for _, src := range instr.Srcs {
				if src.IsSSA() && !blockDef[src.Num] {
					blockUse[src.Num] = true
				}
			}
			for _, dst := range instr.Dsts {
				if dst.IsSSA() {
					blockDef[dst.Num] = true
				}
			}
			return true
		})
		use[bref] = blockUse
		def[bref] = blockDef
	}

	lv := &liveness{liveIn: map[arena.Ref]map[uint32]bool{}, liveOut: map[arena.Ref]map[uint32]bool{}}
	for _, bref := range m.BlockOrder {
		lv.liveIn[bref] = map[uint32]bool{}
		lv.liveOut[bref] = map[uint32]bool{}
	}

	changed := true
	for changed {
		changed = false
		for i := len(m.BlockOrder) - 1; i >= 0; i-- {
			bref := m.BlockOrder[i]
			b := m.Blocks.Get(bref)
			newOut := map[uint32]bool{}
			for _, s := range b.Succs {
				if s == 0 {
					continue
				}
				for v := range lv.liveIn[s] {
					newOut[v] = true
				}
			}
			newIn := map[uint32]bool{}
			for v := range use[bref] {
				newIn[v] = true
			}
			for v := range newOut {
				if !def[bref][v] {
					newIn[v] = true
				}
			}
			if !setEqual(newIn, lv.liveIn[bref]) || !setEqual(newOut, lv.liveOut[bref]) {
				changed = true
			}
			lv.liveIn[bref] = newIn
			lv.liveOut[bref] = newOut
		}
	}
	return lv
}

func setEqual(a, b map[uint32]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
