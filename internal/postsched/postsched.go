// Package postsched implements C7 (spec.md §4.6): the post-register-allocation
// scheduler. Unlike C5, it operates over physical-register dependencies (the
// SSA name space is gone after internal/regalloc), inserts explicit nops to
// cover part of an SFU/texture-memory producer's latency, and stamps the
// (ss)/(sy) synchronization flags every consumer within the remaining window
// needs (spec.md §3.2 invariant 8, property P1).
//
// Grounded on the same ready-list/worklist idiom as internal/presched (C5),
// generalized from SSA def-use edges to the four physical-register hazard
// classes spec.md §4.6 names: true-dep (write->read), output-dep
// (write->write), anti-dep (read->write), plus the barrier-class and
// false-dep edges spec.md §5 and §3.1 describe. Algorithm shape from
// original_source ir3_postsched.c as named in spec.md's component table.
package postsched

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options configures a Run call.
type Options struct{}

// Run schedules every block of m independently. A register write on the
// address/predicate register does not carry across blocks (spec.md §4.6:
// "each block re-emits the address-materializing sequence"), so, as in C5,
// per-block scheduling loses nothing a whole-module DAG would have caught.
func Run(m *ir.Module, g gen.Generation, _ Options) error {
	for _, bref := range m.BlockOrder {
		scheduleBlock(m, bref, g)
	}
	return nil
}

func scheduleBlock(m *ir.Module, bref arena.Ref, g gen.Generation) {
	b := m.Blocks.Get(bref)

	var instrs []arena.Ref
	b.Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
		instrs = append(instrs, ref)
		return true
	})
	if len(instrs) <= 1 {
		return
	}

	dag := buildPostDAG(m, instrs)
	order := postListSchedule(dag)
	order = insertLatencyBubbles(m, order, g)
	stampSyncFlags(m, order, g)

	for _, ref := range instrs {
		b.Remove(m.Instrs, ref)
	}
	for _, ref := range order {
		b.Append(m.Instrs, ref, bref)
	}
}
