package presched

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// node holds the per-instruction scheduling state for one block.
type node struct {
	ref       arena.Ref
	instr     *ir.Instruction
	preds     []arena.Ref // intra-block producers this instruction depends on
	predLat   []int       // latency (in emitted instructions) before pred's result is usable
	succCount int         // outstanding unscheduled successors, for last-use tracking
	maxDelay  int         // longest weighted path to the block's exit, computed bottom-up
	components int        // popcount(WrMask) of the instruction's destination, or 0
}

type depGraph struct {
	nodes   map[arena.Ref]*node
	order   []arena.Ref // original program order, for fallback tie-breaks
}

// buildDepGraph links each instruction to the intra-block producers of its
// source operands, weighted by the producer's latency class (§4.6's
// (ss)/(sy) windows apply here too: a consumer of an SFU or texture/memory
// result isn't truly ready until that latency has elapsed).
func buildDepGraph(m *ir.Module, instrs []arena.Ref, g gen.Generation) *depGraph {
	dg := &depGraph{nodes: make(map[arena.Ref]*node, len(instrs)), order: instrs}

	defSite := map[uint32]arena.Ref{} // SSA num -> defining instruction in this block
	for _, ref := range instrs {
		instr := m.Instrs.Get(ref)
		dg.nodes[ref] = &node{ref: ref, instr: instr, components: popcount(instr.Dst().WrMask)}
		for _, dst := range instr.Dsts {
			if dst.IsSSA() {
				defSite[dst.Num] = ref
			}
		}
	}

	for _, ref := range instrs {
		n := dg.nodes[ref]
		instr := n.instr
		seen := map[arena.Ref]bool{}
		for _, src := range instr.Srcs {
			if !src.IsSSA() {
				continue
			}
			pref, ok := defSite[src.Num]
			if !ok || seen[pref] {
				continue
			}
			seen[pref] = true
			n.preds = append(n.preds, pref)
			n.predLat = append(n.predLat, latencyOf(dg.nodes[pref].instr, g))
			dg.nodes[pref].succCount++
		}
	}

	computeMaxDelay(dg)
	return dg
}

func latencyOf(producer *ir.Instruction, g gen.Generation) int {
	switch {
	case ir.IsSFU(producer.Op):
		return g.SFULatency
	case ir.IsTexOrMem(producer.Op):
		return g.TexMemLatency
	default:
		return 1
	}
}

// computeMaxDelay assigns each node the longest weighted path to the
// block's exit (spec.md §4.4 rule 5's "maximum max_delay" tie-break).
// Instructions are already topologically ordered by construction (a use
// always follows its intra-block def in program order, SSA invariant 1),
// so a single reverse pass over dg.order suffices.
func computeMaxDelay(dg *depGraph) {
	for i := len(dg.order) - 1; i >= 0; i-- {
		ref := dg.order[i]
		n := dg.nodes[ref]
		best := 0
		for _, sref := range dg.order {
			sn := dg.nodes[sref]
			for j, pref := range sn.preds {
				if pref == ref {
					cand := sn.predLat[j] + sn.maxDelay
					if cand > best {
						best = cand
					}
				}
			}
		}
		n.maxDelay = best
	}
}

func popcount(mask uint8) int {
	n := 0
	for mask != 0 {
		n += int(mask & 1)
		mask >>= 1
	}
	return n
}
