// Package regalloc implements C6 (spec.md §4.5): graph-coloring register
// allocation with live-range splitting via spill/fill, a unified half/full
// register file (a 32-bit register conflicts with its two 16-bit halves),
// tied operands for atomics, array pre-coloring, and phi resolution into
// parallel moves.
//
// No teacher file models a graph-coloring allocator — internal/vmregister
// is a fixed-slot stack VM with no allocation decision to make at all. This
// package is written fresh, grounded on the adjacency-set idiom spec.md §9
// names ("Ulrich-Drepper small-vector idiom") for the interference graph,
// and on internal/cflow's collapse-in-place convention for phi resolution.
// It uses golang.org/x/exp/maps and golang.org/x/exp/slices throughout for
// deterministic, sorted iteration over the graph's node and neighbor sets:
// Go map iteration order is randomized, which would make allocator output,
// and therefore every downstream golden test, nondeterministic between
// runs of the same input.
package regalloc

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/arena"
	ir3err "github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options reserves room for future allocator knobs; empty today.
type Options struct{}

// maxSpillRounds bounds the spill/recolor retry loop. Each round strictly
// shrinks the live range of every value it touches (spillValues), so in
// practice one or two rounds resolve real programs; this is a backstop
// against a pathological input, not a tuned constant.
const maxSpillRounds = 8

// Run allocates physical registers for every SSA value in m, in place.
func Run(m *ir.Module, g gen.Generation, _ Options) error {
	resolvePhis(m)
	reserved := assignArrayBases(m)

	for round := 0; ; round++ {
		lv := computeLiveness(m)
		ig := buildInterference(m, lv)
		tied := tiedPairs(m)
		col := colorGraph(ig, g, reserved, tied)

		if len(col.spills) == 0 {
			applyColoring(m, col)
			return nil
		}
		if round >= maxSpillRounds {
			return ir3err.NewResourceExhausted("regalloc", fmt.Sprintf(
				"could not color %d value(s) into %d half-registers after %d spill round(s)",
				len(col.spills), g.HalfRegCount, maxSpillRounds))
		}
		spillValues(m, col.spills)
	}
}

// applyColoring rewrites every SSA operand to the physical register the
// coloring assigned it. Array-resident operands (ArrayID != 0) are left
// alone: their placement was already fixed by assignArrayBases and they
// are addressed relative to that base, not by per-value coloring.
func applyColoring(m *ir.Module, col *coloring) {
	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		b.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			for i := range instr.Dsts {
				instr.Dsts[i] = rewritePhys(instr.Dsts[i], col.color)
			}
			for i := range instr.Srcs {
				instr.Srcs[i] = rewritePhys(instr.Srcs[i], col.color)
			}
			return true
		})
	}
}

func rewritePhys(r ir.Register, color map[uint32]int) ir.Register {
	if !r.IsSSA() || r.ArrayID != 0 {
		return r
	}
	c, ok := color[r.Num]
	if !ok {
		return r
	}
	phys := ir.PhysReg(uint32(c), r.Width)
	phys.Mods = r.Mods
	phys.WrMask = r.WrMask
	return phys
}
