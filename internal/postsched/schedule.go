package postsched

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// postListSchedule is the "priority-queue traversal picks the ready node
// maximizing max_delay" rule of spec.md §4.6. Readiness here only requires
// that every hazard predecessor has been dispatched (not that its full
// latency has elapsed): on this hardware a dependent may issue before a
// producer retires and simply carry the (ss)/(sy) flag, which
// insertLatencyBubbles and stampSyncFlags compute separately. That split is
// what makes Scenario F's outcome possible at all: a consumer can be
// scheduled right after its SFU producer and still end up flagged rather
// than stalled the full window.
func postListSchedule(dag *postDAG) []arena.Ref {
	scheduled := map[arena.Ref]bool{}
	remaining := map[arena.Ref]int{}
	progIndex := map[arena.Ref]int{}
	for i, ref := range dag.order {
		remaining[ref] = len(dag.nodes[ref].preds)
		progIndex[ref] = i
	}

	var out []arena.Ref
	for len(out) < len(dag.order) {
		var ready []*pnode
		for _, ref := range dag.order {
			if !scheduled[ref] && remaining[ref] == 0 {
				ready = append(ready, dag.nodes[ref])
			}
		}
		best := ready[0]
		for _, n := range ready[1:] {
			switch {
			case n.maxDelay != best.maxDelay:
				if n.maxDelay > best.maxDelay {
					best = n
				}
			case progIndex[n.ref] < progIndex[best.ref]:
				best = n
			}
		}
		scheduled[best.ref] = true
		out = append(out, best.ref)
		for _, ref := range dag.order {
			n := dag.nodes[ref]
			for _, p := range n.preds {
				if p == best.ref {
					remaining[ref]--
				}
			}
		}
	}
	return out
}

// insertLatencyBubbles implements "inserts no-ops for remaining latency":
// whenever a true-dep consumer of an SFU or texture/memory producer would
// otherwise issue in the very next slot, one OpNop is spliced in to cover
// the unit's minimum pipeline depth, up to g.MaxDelaySlots total bubbles per
// producer. This intentionally does not try to cover the producer's whole
// latency window (spec.md §4.6's own scenario expects a consumer to still
// carry (ss) after a handful of nops) — it only removes the single worst
// hazard, a zero-distance read, and leaves the rest of the window for the
// sync flag to cover.
func insertLatencyBubbles(m *ir.Module, order []arena.Ref, g gen.Generation) []arena.Ref {
	var out []arena.Ref
	bubblesUsed := map[arena.Ref]int{} // producer ref -> bubbles already inserted after it
	for i, ref := range order {
		instr := m.Instrs.Get(ref)
		if i > 0 {
			prevRef := order[i-1]
			prev := m.Instrs.Get(prevRef)
			if (ir.IsSFU(prev.Op) || ir.IsTexOrMem(prev.Op)) && consumesResultOf(prev, instr) &&
				bubblesUsed[prevRef] < g.MaxDelaySlots {
				out = append(out, m.Instrs.Alloc(ir.Instruction{Op: ir.OpNop}))
				bubblesUsed[prevRef]++
			}
		}
		out = append(out, ref)
	}
	return out
}

func consumesResultOf(producer, consumer *ir.Instruction) bool {
	for _, d := range producer.Dsts {
		for _, s := range consumer.Srcs {
			if overlaps(d, s) {
				return true
			}
		}
	}
	return false
}

// stampSyncFlags implements P1 directly: for every scheduled instruction,
// (ss) is set iff some SFU producer's register is still inside its
// SFULatency-instruction window (counting nops), and (sy) likewise for
// texture/memory producers against TexMemLatency. Walking the final order
// once, decrementing open windows every slot, is exactly that definition —
// correctness does not depend on insertLatencyBubbles having done anything
// in particular first.
func stampSyncFlags(m *ir.Module, order []arena.Ref, g gen.Generation) {
	type window struct {
		lo, hi   int
		remaining int
	}
	var ssWindows, syWindows []window

	tick := func(wins []window) []window {
		out := wins[:0]
		for _, w := range wins {
			w.remaining--
			if w.remaining > 0 {
				out = append(out, w)
			}
		}
		return out
	}
	hits := func(wins []window, instr *ir.Instruction) bool {
		for _, w := range wins {
			for _, s := range instr.Srcs {
				lo, hi, ok := regRange(s)
				if ok && lo <= w.hi && w.lo <= hi {
					return true
				}
			}
		}
		return false
	}

	for _, ref := range order {
		instr := m.Instrs.Get(ref)

		if hits(ssWindows, instr) {
			instr.SetFlag(ir.FlagSyncSS)
		}
		if hits(syWindows, instr) {
			instr.SetFlag(ir.FlagSyncSY)
		}

		ssWindows = tick(ssWindows)
		syWindows = tick(syWindows)

		if ir.IsSFU(instr.Op) {
			for _, d := range instr.Dsts {
				lo, hi, ok := regRange(d)
				if ok {
					ssWindows = append(ssWindows, window{lo: lo, hi: hi, remaining: g.SFULatency})
				}
			}
		}
		if ir.IsTexOrMem(instr.Op) {
			for _, d := range instr.Dsts {
				lo, hi, ok := regRange(d)
				if ok {
					syWindows = append(syWindows, window{lo: lo, hi: hi, remaining: g.TexMemLatency})
				}
			}
		}
	}
}
