package regalloc

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

func isAtomic(op ir.Op) bool {
	switch op {
	case ir.OpAtomicAdd, ir.OpAtomicExch, ir.OpAtomicCmpExch:
		return true
	}
	return false
}

// tiedPairs returns, for every atomic instruction, the SSA value that must
// share a physical register with its destination: the last source operand,
// the value being exchanged or added. The atomic unit reads and
// read-modify-writes a single register slot in one cycle (spec.md §4.5's
// "tied operands" rule); coloring the old-value result and the new-value
// input to different registers would require an extra move the hardware
// has no cycle for.
func tiedPairs(m *ir.Module) map[uint32]uint32 {
	pairs := map[uint32]uint32{}
	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		b.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			if !isAtomic(instr.Op) || len(instr.Srcs) == 0 {
				return true
			}
			dst := instr.Dst()
			last := instr.Srcs[len(instr.Srcs)-1]
			if dst.IsSSA() && last.IsSSA() {
				pairs[dst.Num] = last.Num
				pairs[last.Num] = dst.Num
			}
			return true
		})
	}
	return pairs
}
