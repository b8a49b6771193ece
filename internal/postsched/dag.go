package postsched

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// pnode is the per-instruction state of the post-RA dependency DAG.
type pnode struct {
	ref      arena.Ref
	instr    *ir.Instruction
	preds    []arena.Ref // must be scheduled before this node
	maxDelay int         // longest path, in hazard-weighted hops, to the block's exit
}

type postDAG struct {
	nodes map[arena.Ref]*pnode
	order []arena.Ref // original program order, the base a valid reordering must respect
}

// regRange returns the inclusive half-slot range r occupies, or ok=false if
// r is not a physical register (post-RA, immediates/const-file operands
// carry no register hazard).
func regRange(r ir.Register) (lo, hi int, ok bool) {
	if !r.IsPhys() {
		return 0, 0, false
	}
	lo = int(r.Num)
	hi = lo
	if r.Width != ir.Width16 {
		hi = lo + 1
	}
	return lo, hi, true
}

func overlaps(a, b ir.Register) bool {
	lo1, hi1, ok1 := regRange(a)
	lo2, hi2, ok2 := regRange(b)
	return ok1 && ok2 && lo1 <= hi2 && lo2 <= hi1
}

// dependsOn reports whether later must be scheduled after earlier, per the
// four hazard classes spec.md §4.6 lists plus the barrier-class and
// false-dependency edges of §5/§3.1.
func dependsOn(earlier, later *ir.Instruction, earlierRef arena.Ref) bool {
	for _, d := range earlier.Dsts {
		for _, s := range later.Srcs {
			if overlaps(d, s) {
				return true // true-dep: write -> read
			}
		}
		for _, d2 := range later.Dsts {
			if overlaps(d, d2) {
				return true // output-dep: write -> write
			}
		}
	}
	for _, s := range earlier.Srcs {
		for _, d := range later.Dsts {
			if overlaps(s, d) {
				return true // anti-dep: read -> write
			}
		}
	}
	if earlier.ConflictsWith(later) {
		return true // barrier-class dep
	}
	for _, dep := range later.Deps {
		if dep == earlierRef {
			return true // user-declared false dependency
		}
	}
	return false
}

// buildPostDAG links every instruction to its intra-block hazard
// predecessors. Quadratic in block size, which is acceptable at the
// instruction counts a single shader basic block reaches.
func buildPostDAG(m *ir.Module, instrs []arena.Ref) *postDAG {
	dag := &postDAG{nodes: make(map[arena.Ref]*pnode, len(instrs)), order: instrs}
	for _, ref := range instrs {
		dag.nodes[ref] = &pnode{ref: ref, instr: m.Instrs.Get(ref)}
	}
	for i, laterRef := range instrs {
		later := dag.nodes[laterRef].instr
		for _, earlierRef := range instrs[:i] {
			earlier := dag.nodes[earlierRef].instr
			if dependsOn(earlier, later, earlierRef) {
				dag.nodes[laterRef].preds = append(dag.nodes[laterRef].preds, earlierRef)
			}
		}
	}
	computeMaxDelay(dag)
	return dag
}

// hazardWeight is the edge weight used for max_delay: an SFU or
// texture/memory producer's result takes longer to become load-bearing for
// scheduling priority purposes, mirroring internal/presched's latencyOf.
func hazardWeight(instr *ir.Instruction) int {
	switch {
	case ir.IsSFU(instr.Op):
		return 2
	case ir.IsTexOrMem(instr.Op):
		return 3
	default:
		return 1
	}
}

func computeMaxDelay(dag *postDAG) {
	for i := len(dag.order) - 1; i >= 0; i-- {
		ref := dag.order[i]
		best := 0
		for _, succRef := range dag.order {
			sn := dag.nodes[succRef]
			for _, p := range sn.preds {
				if p == ref {
					cand := hazardWeight(sn.instr) + sn.maxDelay
					if cand > best {
						best = cand
					}
				}
			}
		}
		dag.nodes[ref].maxDelay = best
	}
}
