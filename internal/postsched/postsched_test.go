package postsched

import (
	"testing"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

func opsOf(m *ir.Module, block arena.Ref) []ir.Op {
	var ops []ir.Op
	m.Blocks.Get(block).Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
		ops = append(ops, instr.Op)
		return true
	})
	return ops
}

// TestRun_SFUConsumerCarriesSyncSS exercises P1 and Scenario F: y = log2(x);
// z = y + 1.0 must have z's fadd carrying (ss), and at least one nop or
// unrelated instruction must separate them from the producer.
func TestRun_SFUConsumerCarriesSyncSS(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()

	x := ir.PhysReg(2, ir.Width32)
	y := ir.PhysReg(4, ir.Width32)
	logRef := m.Emit(b, ir.Instruction{Op: ir.OpLog2, Dsts: []ir.Register{y}, Srcs: []ir.Register{x}})
	_ = logRef
	z := ir.PhysReg(6, ir.Width32)
	addRef := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{z}, Srcs: []ir.Register{y, ir.ImmFloatReg(0x3f800000)}})

	if err := Run(m, gen.A6XX, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ops := opsOf(m, b)
	if ops[0] != ir.OpLog2 {
		t.Fatalf("expected log2 scheduled first, got %v", ops)
	}
	if len(ops) < 3 {
		t.Fatalf("expected at least one instruction (nop or otherwise) between producer and consumer, got %v", ops)
	}

	add := m.Instrs.Get(addRef)
	if !add.HasFlag(ir.FlagSyncSS) {
		t.Fatalf("expected fadd consuming a recent log2 result to carry (ss)")
	}
}

func TestRun_NoHazardLeavesFlagsClear(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	dst := ir.PhysReg(0, ir.Width32)
	ref := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{dst}, Srcs: []ir.Register{
		ir.ImmUintReg(1, ir.Width32), ir.ImmUintReg(2, ir.Width32),
	}})
	if err := Run(m, gen.A6XX, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	instr := m.Instrs.Get(ref)
	if instr.HasFlag(ir.FlagSyncSS) || instr.HasFlag(ir.FlagSyncSY) {
		t.Fatalf("instruction with no SFU/tex-mem producer should carry no sync flags")
	}
}

func TestRun_SyncSSClearsOnceWindowElapses(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()

	x := ir.PhysReg(2, ir.Width32)
	y := ir.PhysReg(4, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpRcp, Dsts: []ir.Register{y}, Srcs: []ir.Register{x}})
	for i := 0; i < gen.A6XX.SFULatency+2; i++ {
		unrelated := ir.PhysReg(uint32(20+2*i), ir.Width32)
		m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{unrelated}, Srcs: []ir.Register{
			ir.ImmUintReg(1, ir.Width32), ir.ImmUintReg(2, ir.Width32),
		}})
	}
	z := ir.PhysReg(6, ir.Width32)
	lateRef := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{z}, Srcs: []ir.Register{y, ir.ImmUintReg(1, ir.Width32)}})

	if err := Run(m, gen.A6XX, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	late := m.Instrs.Get(lateRef)
	if late.HasFlag(ir.FlagSyncSS) {
		t.Fatalf("consumer well outside the SFU latency window should not carry (ss)")
	}
}
