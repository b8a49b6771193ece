// Package presched implements C5 (spec.md §4.4): the pre-register-allocation
// list scheduler that reorders each block's instructions to minimize
// dispatched cycles plus a live-vector-pressure penalty, subject to
// producer/consumer latency.
//
// Grounded on the teacher's iterative dispatch loops (internal/vmregister's
// VM fetch/decode/execute loop is a ready-queue-of-one walked every cycle);
// here the "queue" holds every instruction whose dependencies are satisfied,
// and the dispatch loop picks among them by the priority rules of §4.4
// instead of always taking the next instruction in program order.
package presched

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options configures a Run call.
type Options struct{}

// Run schedules every block of m independently: cross-block values are
// already available (their producer is in a different, already-retired
// block), so only intra-block def-use edges constrain ordering.
func Run(m *ir.Module, g gen.Generation, _ Options) error {
	for _, bref := range m.BlockOrder {
		scheduleBlock(m, bref, g)
	}
	return nil
}

// scheduleBlock rebuilds the block's instruction list in priority order.
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

	g2 := buildDepGraph(m, instrs, g)
	order := listSchedule(m, g2, g)

	// Rebuild the block's linked list in the new order, inserting real
	// OpNop instructions where the scheduler had to stall.
	for _, ref := range instrs {
		b.Remove(m.Instrs, ref)
	}
	for _, step := range order {
		if step.nop {
			nopRef := m.Instrs.Alloc(ir.Instruction{Op: ir.OpNop})
			b.Append(m.Instrs, nopRef, bref)
			continue
		}
		b.Append(m.Instrs, step.ref, bref)
	}
}

type scheduledStep struct {
	ref arena.Ref
	nop bool
}
