// Package copyprop implements C8 (spec.md §4.7): post-register-allocation
// copy propagation and pseudo-op lowering. It folds identity movs into their
// consumer, resolves split/combine shuffle pseudo-ops into either no-ops or
// explicit moves depending on what internal/regalloc colored them to, and
// absorbs source modifiers (abs/neg/not) across a producer chain, including
// the two-hop double-negation case SPEC_FULL.md §D.1 calls out.
//
// Grounded on internal/compiler/compiler.go's peephole-rewrite style
// (internal/ssaopt's copyPropagate is the SSA-era cousin of this pass);
// algorithm detail from original_source ir3_cp.c as named in spec.md's
// component table.
package copyprop

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options configures a Run call.
type Options struct{}

// Run applies the three C8 rewrites to every block of m, in the order
// spec.md §4.7 presents them: identity-mov elimination, split/combine
// resolution, then source-modifier folding (which benefits from running
// last, since dropping identity movs and resolving shuffles can expose new
// directly-adjacent mov/absneg producer-consumer pairs).
func Run(m *ir.Module, _ Options) error {
	for _, bref := range m.BlockOrder {
		dropIdentityMovs(m, bref)
	}
	for _, bref := range m.BlockOrder {
		resolveSplitCombine(m, bref)
	}
	for _, bref := range m.BlockOrder {
		foldSourceModifiers(m, bref)
	}
	return nil
}

// dropIdentityMovs removes a `mov` whose source and destination are the
// same physical register at the same width with no modifiers (spec.md
// §4.7: "a pass folds mov instructions that are identity... into their
// consumer" — consumers already reference that same register number, so
// there is nothing left to rewrite once the mov itself is gone).
func dropIdentityMovs(m *ir.Module, bref arena.Ref) {
	b := m.Blocks.Get(bref)
	var drop []arena.Ref
	b.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
		if instr.Op != ir.OpMov || len(instr.Srcs) != 1 || len(instr.Dsts) != 1 {
			return true
		}
		src, dst := instr.Srcs[0], instr.Dst()
		if src.IsPhys() && dst.IsPhys() && src.Num == dst.Num && src.Width == dst.Width && src.Mods == 0 {
			drop = append(drop, ref)
		}
		return true
	})
	for _, ref := range drop {
		if !m.IsKept(ref) {
			b.Remove(m.Instrs, ref)
		}
	}
}
