package presched

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

func TestScheduleBlock_MetaOpAndDiscardOutrankPlainOps(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()

	x := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{x}, Srcs: []ir.Register{
		ir.ImmUintReg(1, ir.Width32), ir.ImmUintReg(2, ir.Width32),
	}})
	m.Emit(b, ir.Instruction{Op: ir.OpKill, Srcs: []ir.Register{ir.SSAReg(m.AllocSSA(), ir.Width16)}, BarrierClass: ir.BarrierActiveFragment})
	in := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpInput, Dsts: []ir.Register{in}})

	if err := Run(m, gen.A6XX, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := opsOf(m, b)
	if ops[0] != ir.OpInput {
		t.Fatalf("expected OpInput scheduled first, got %v", ops)
	}
	if ops[1] != ir.OpKill {
		t.Fatalf("expected OpKill scheduled before the plain add, got %v", ops)
	}
}

func TestScheduleBlock_InsertsNopsForSFULatency(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()

	rcpDst := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpRcp, Dsts: []ir.Register{rcpDst}, Srcs: []ir.Register{ir.SSAReg(m.AllocSSA(), ir.Width32)}})
	consumerDst := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{consumerDst}, Srcs: []ir.Register{rcpDst, ir.ImmUintReg(1, ir.Width32)}})

	if err := Run(m, gen.A6XX, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := opsOf(m, b)
	if ops[0] != ir.OpRcp {
		t.Fatalf("rcp should be scheduled first, got %v", ops)
	}
	if ops[len(ops)-1] != ir.OpAdd {
		t.Fatalf("consumer should be scheduled last, got %v", ops)
	}
	nopCount := 0
	for _, op := range ops[1 : len(ops)-1] {
		if op != ir.OpNop {
			t.Fatalf("expected only nops between producer and consumer, got %v in %v", op, ops)
		}
		nopCount++
	}
	if nopCount != gen.A6XX.SFULatency-1 {
		t.Fatalf("got %d nops, want %d (SFULatency=%d minus the producer's own dispatch cycle)", nopCount, gen.A6XX.SFULatency-1, gen.A6XX.SFULatency)
	}
}

func TestScheduleBlock_NoDepsLeavesOrderStable(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	single := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{single}, Srcs: []ir.Register{
		ir.ImmUintReg(1, ir.Width32), ir.ImmUintReg(2, ir.Width32),
	}})

	if err := Run(m, gen.A6XX, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ops := opsOf(m, b); len(ops) != 1 || ops[0] != ir.OpAdd {
		t.Fatalf("single-instruction block should be untouched, got %v", ops)
	}
}

func TestLiveEffect_AccountsForLastUse(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	x := ir.SSAReg(m.AllocSSA(), ir.Width32)
	xDef := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{x}, Srcs: []ir.Register{
		ir.ImmUintReg(1, ir.Width32), ir.ImmUintReg(2, ir.Width32),
	}})
	y := ir.SSAReg(m.AllocSSA(), ir.Width32)
	yUse := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{y}, Srcs: []ir.Register{x, ir.ImmUintReg(1, ir.Width32)}})

	var instrs []arena.Ref
	m.Blocks.Get(b).Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
		instrs = append(instrs, ref)
		return true
	})
	dg := buildDepGraph(m, instrs, gen.A6XX)

	remainingSucc := map[arena.Ref]int{xDef: dg.nodes[xDef].succCount, yUse: dg.nodes[yUse].succCount}
	effect := liveEffect(dg.nodes[yUse], dg, remainingSucc)
	// yUse defines 1 component and retires x's 1 component (its only use).
	if effect != 0 {
		t.Fatalf("got live_effect %d, want 0 (1 new - 1 retired)", effect)
	}
}
