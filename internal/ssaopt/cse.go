package ssaopt

import (
	"fmt"
	"strings"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// cseEligible reports whether instr is pure enough to dedup: no memory,
// texture, sync, or predicate-writing opcode, and no observable side effect.
func cseEligible(m *ir.Module, ref arena.Ref, instr *ir.Instruction) bool {
	if hasSideEffect(m, ref, instr) {
		return false
	}
	if ir.IsTexOrMem(instr.Op) || ir.IsSFU(instr.Op) {
		return false
	}
	switch instr.Op {
	case ir.OpMov, ir.OpMovImm, ir.OpPhi, ir.OpInput, ir.OpSplit, ir.OpCombine:
		return false
	}
	return len(instr.Dsts) == 1
}

func cseKey(instr *ir.Instruction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d", instr.Op, instr.Dst().Width)
	for _, s := range instr.Srcs {
		fmt.Fprintf(&sb, "|%d:%d:%d:%d:%d", s.Num, s.ImmKind, s.ImmBits, s.Mods, s.ArrayID)
	}
	return sb.String()
}

// commonSubexprElim implements the CSE step of spec.md §4.2: within a
// block, a pure instruction identical to an earlier one (same opcode,
// width, and operands) collapses into a mov from the earlier result,
// matching the in-place-collapse convention internal/lower's Run uses.
func commonSubexprElim(m *ir.Module) bool {
	changed := false
	for _, bref := range m.BlockOrder {
		seen := map[string]ir.Register{}
		block := m.Blocks.Get(bref)
		block.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			if !cseEligible(m, ref, instr) {
				return true
			}
			key := cseKey(instr)
			if existing, ok := seen[key]; ok {
				instr.Op = ir.OpMov
				instr.Srcs = []ir.Register{existing}
				changed = true
				return true
			}
			seen[key] = instr.Dst()
			return true
		})
	}
	return changed
}
