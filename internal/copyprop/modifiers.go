package copyprop

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// foldSourceModifiers implements spec.md §4.7's last rule: "if an
// instruction's only consumer accepts a modifier (abs/neg/not) and the
// producer is a matching mov/absneg, the modifier is absorbed and the
// producer is dropped", plus SPEC_FULL.md §D.1's chain extension ("double
// negations cancel" across two hops, and abs(neg(x)) == abs(x)).
//
// "Only consumer" is checked by a forward scan from the producer rather
// than a maintained use-count, since C8 runs after regalloc has erased the
// SSA name space that a use-count would otherwise be keyed on.
func foldSourceModifiers(m *ir.Module, bref arena.Ref) {
	b := m.Blocks.Get(bref)
	var instrs []arena.Ref
	b.Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
		instrs = append(instrs, ref)
		return true
	})

	type producer struct {
		ref arena.Ref
		idx int
	}
	lastWriter := map[uint32]producer{}

	for idx, ref := range instrs {
		instr := m.Instrs.Get(ref)

		for i, src := range instr.Srcs {
			if !src.IsPhys() {
				continue
			}
			p, ok := lastWriter[src.Num]
			if !ok {
				continue
			}
			prod := m.Instrs.Get(p.ref)
			if prod.Op != ir.OpMov || len(prod.Srcs) != 1 || len(prod.Dsts) != 1 {
				continue
			}
			prodSrc := prod.Srcs[0]
			if prodSrc.Width != src.Width {
				continue
			}
			if countReads(m, instrs, p.idx+1, src.Num) != 1 {
				continue
			}
			folded := prodSrc
			folded.Mods = combineMods(src.Mods, prodSrc.Mods)
			folded.WrMask = src.WrMask
			instr.Srcs[i] = folded
			if !m.IsKept(p.ref) {
				b.Remove(m.Instrs, p.ref)
			}
			delete(lastWriter, src.Num)
		}

		for _, dst := range instr.Dsts {
			if !dst.IsPhys() {
				continue
			}
			if instr.Op == ir.OpMov && len(instr.Srcs) == 1 {
				lastWriter[dst.Num] = producer{ref: ref, idx: idx}
			} else {
				delete(lastWriter, dst.Num)
			}
		}
	}
}

// countReads counts how many source-operand occurrences of physNum appear
// across instrs[from:], regardless of which instruction holds them.
func countReads(m *ir.Module, instrs []arena.Ref, from int, physNum uint32) int {
	n := 0
	for _, ref := range instrs[from:] {
		instr := m.Instrs.Get(ref)
		for _, s := range instr.Srcs {
			if s.IsPhys() && s.Num == physNum {
				n++
			}
		}
	}
	return n
}

// combineMods folds an outer consumer modifier with an inner producer
// modifier: neg and not are involutions (applying twice cancels, so they
// XOR), abs is idempotent and absorbing (abs(neg(x)) == abs(x), so once
// abs is set any inherited neg is dropped).
func combineMods(outer, inner ir.Mod) ir.Mod {
	result := outer
	if inner&ir.ModNeg != 0 {
		result ^= ir.ModNeg
	}
	if inner&ir.ModNot != 0 {
		result ^= ir.ModNot
	}
	if inner&ir.ModAbs != 0 {
		result |= ir.ModAbs
	}
	if result&ir.ModAbs != 0 {
		result &^= ir.ModNeg
	}
	return result
}
