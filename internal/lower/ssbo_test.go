package lower

import (
	"testing"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// TestLowerByteOffset_ConstantAlignedEmitsNoInstruction is property P5:
// "for every SSBO load with aligned byte-offset k*4, the emitted element
// offset is k and no runtime shift is present."
func TestLowerByteOffset_ConstantAlignedEmitsNoInstruction(t *testing.T) {
	m := ir.NewModule(ir.StageCompute)
	b := m.NewBlock()

	elem, constPart := LowerByteOffset(m, b, ir.ImmUintReg(12, ir.Width32), 32)
	if elem != (ir.Register{}) {
		t.Fatalf("expected zero Register sentinel for a compile-time-constant offset, got %+v", elem)
	}
	if constPart != 3 {
		t.Fatalf("constPart = %d, want 3 (12 bytes / 4)", constPart)
	}

	var count int
	m.Blocks.Get(b).Instrs(m.Instrs, func(_ arena.Ref, _ *ir.Instruction) bool {
		count++
		return true
	})
	if count != 0 {
		t.Fatalf("constant offset emitted %d instructions, want 0", count)
	}
}

func TestLowerByteOffset_RuntimeEmitsUshr(t *testing.T) {
	m := ir.NewModule(ir.StageCompute)
	b := m.NewBlock()
	x := ir.SSAReg(m.AllocSSA(), ir.Width32)

	elem, _ := LowerByteOffset(m, b, x, 32)
	if elem == (ir.Register{}) {
		t.Fatal("runtime offset should return a live register, not the zero sentinel")
	}

	var ops []ir.Op
	m.Blocks.Get(b).Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
		ops = append(ops, instr.Op)
		return true
	})
	if len(ops) != 1 || ops[0] != ir.OpUShr {
		t.Fatalf("got %v, want exactly one ushr", ops)
	}
}

func TestShiftForBitSize(t *testing.T) {
	cases := map[int]uint32{8: 0, 16: 1, 32: 2, 64: 3}
	for bitSize, want := range cases {
		if got := ShiftForBitSize(bitSize); got != want {
			t.Fatalf("ShiftForBitSize(%d) = %d, want %d", bitSize, got, want)
		}
	}
}
