package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// forEachInstr visits every live instruction in the module in block order,
// using the snapshot cursor internal/ir/block.go documents so the callback
// may remove the current instruction.
func forEachInstr(m *ir.Module, fn func(block, ref arena.Ref, instr *ir.Instruction) bool) {
	for _, bref := range m.BlockOrder {
		block := m.Blocks.Get(bref)
		cont := true
		block.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			cont = fn(bref, ref, instr)
			return cont
		})
		if !cont {
			return
		}
	}
}

// hasSideEffect reports whether instr must never be removed by a pass that
// only tracks "is the result used": a non-zero barrier class, a predicate
// write, or an explicit Keep all count as observable.
func hasSideEffect(m *ir.Module, ref arena.Ref, instr *ir.Instruction) bool {
	return m.IsKept(ref) || instr.BarrierClass != 0 || instr.HasFlag(ir.FlagKill) || m.Predicates[ref]
}
