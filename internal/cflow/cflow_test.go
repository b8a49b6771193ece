package cflow

import (
	"testing"

	"github.com/tiledgpu/ir3c/internal/arena"
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

// buildDiamond constructs the Scenario-B shape: header H (cond) -> T, E ->
// join J with a phi merging thenVal/elseVal.
func buildDiamond(m *ir.Module) (h, tB, eB, j arena.Ref, condReg, thenVal, elseVal ir.Register, phiRef arena.Ref) {
	h = m.NewBlock()
	tB = m.NewBlock()
	eB = m.NewBlock()
	j = m.NewBlock()

	condReg = ir.SSAReg(m.AllocSSA(), ir.Width16)
	condRef := m.Emit(h, ir.Instruction{Op: ir.OpCmpNE, Dsts: []ir.Register{condReg}, Srcs: []ir.Register{
		ir.SSAReg(m.AllocSSA(), ir.Width32), ir.ImmUintReg(0, ir.Width32),
	}})
	m.Blocks.Get(h).Condition = condRef
	m.Blocks.Get(h).AddSucc(tB)
	m.Blocks.Get(h).AddSucc(eB)

	thenVal = ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(tB, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{thenVal}, Srcs: []ir.Register{
		ir.SSAReg(m.AllocSSA(), ir.Width32), ir.ImmUintReg(1, ir.Width32),
	}})
	m.Blocks.Get(tB).Preds = []arena.Ref{h}
	m.Blocks.Get(tB).AddSucc(j)

	elseVal = ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(eB, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{elseVal}, Srcs: []ir.Register{
		ir.SSAReg(m.AllocSSA(), ir.Width32), ir.ImmUintReg(2, ir.Width32),
	}})
	m.Blocks.Get(eB).Preds = []arena.Ref{h}
	m.Blocks.Get(eB).AddSucc(j)

	merged := ir.SSAReg(m.AllocSSA(), ir.Width32)
	phiRef = m.Emit(j, ir.Instruction{Op: ir.OpPhi, Dsts: []ir.Register{merged}, Srcs: []ir.Register{thenVal, elseVal}})
	m.Blocks.Get(j).Preds = []arena.Ref{tB, eB}

	return h, tB, eB, j, condReg, thenVal, elseVal, phiRef
}

func TestIfConvert_ScenarioB(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	h, _, _, j, cond, _, _, phiRef := buildDiamond(m)

	if !ifConvert(m) {
		t.Fatal("expected the diamond to convert")
	}

	hBlock := m.Blocks.Get(h)
	if !hBlock.UnconditionalJump || hBlock.Succs[0] != j {
		t.Fatalf("header should jump straight to join, got %+v", hBlock.Succs)
	}
	if len(m.BlockOrder) != 2 {
		t.Fatalf("got %d blocks, want 2 (header absorbed the arms, join remains)", len(m.BlockOrder))
	}

	ops := opsOf(m, h)
	// entry cond compare, if_icmp, add(then), parallel_copy, else_icmp,
	// add(else), parallel_copy, pop_exec.
	wantSeq := []ir.Op{ir.OpCmpNE, ir.OpIfICmp, ir.OpAdd, ir.OpParallelCopy, ir.OpElseICmp, ir.OpAdd, ir.OpParallelCopy, ir.OpPopExec}
	if len(ops) != len(wantSeq) {
		t.Fatalf("got ops %v, want shape %v", ops, wantSeq)
	}
	for i, op := range wantSeq {
		if ops[i] != op {
			t.Fatalf("position %d: got %v, want %v (full: %v)", i, ops[i], op, ops)
		}
	}
	_ = cond

	phi := m.Instrs.Get(phiRef)
	if phi.Op != ir.OpMeta {
		t.Fatalf("join phi should collapse to a meta marker, got %v", phi.Op)
	}
}

func TestIfConvert_PreservesPopExecImmediate(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	h, _, _, _, _, _, _, _ := buildDiamond(m)
	ifConvert(m)

	var popImm uint64 = 99
	m.Blocks.Get(h).Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
		if instr.Op == ir.OpPopExec {
			popImm = instr.Srcs[0].ImmBits
		}
		return true
	})
	if popImm != 1 {
		t.Fatalf("pop_exec immediate = %d, want 1", popImm)
	}
}

// buildTopTestedLoop constructs header L (cond) -> body B -> back to L, or
// L -> exit A.
func buildTopTestedLoop(m *ir.Module) (l, b, a arena.Ref) {
	l = m.NewBlock()
	b = m.NewBlock()
	a = m.NewBlock()

	cond := ir.SSAReg(m.AllocSSA(), ir.Width16)
	condRef := m.Emit(l, ir.Instruction{Op: ir.OpCmpLT, Dsts: []ir.Register{cond}, Srcs: []ir.Register{
		ir.SSAReg(m.AllocSSA(), ir.Width32), ir.ImmUintReg(10, ir.Width32),
	}})
	m.Blocks.Get(l).Condition = condRef
	m.Blocks.Get(l).AddSucc(b)
	m.Blocks.Get(l).AddSucc(a)

	bodyVal := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{bodyVal}, Srcs: []ir.Register{
		ir.SSAReg(m.AllocSSA(), ir.Width32), ir.ImmUintReg(1, ir.Width32),
	}})
	m.Blocks.Get(b).Preds = []arena.Ref{l}
	m.Blocks.Get(b).AddSucc(l)
	m.Blocks.Get(b).UnconditionalJump = true

	m.Blocks.Get(l).Preds = []arena.Ref{b}
	m.Blocks.Get(a).Preds = []arena.Ref{l}

	return l, b, a
}

func TestLoopConvert_CanonicalShape(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	l, _, a := buildTopTestedLoop(m)

	if !loopConvert(m) {
		t.Fatal("expected the loop to convert")
	}
	if len(m.BlockOrder) != 2 {
		t.Fatalf("got %d blocks, want 2 (body absorbed into header, exit remains)", len(m.BlockOrder))
	}
	lBlock := m.Blocks.Get(l)
	if lBlock.Succs[0] != l || lBlock.Succs[1] != a {
		t.Fatalf("loop block should branch to itself or exit, got %+v", lBlock.Succs)
	}
	if lBlock.UnconditionalJump {
		t.Fatal("loop block terminator is a real two-way branch, not unconditional")
	}

	ops := opsOf(m, l)
	wantSeq := []ir.Op{ir.OpPushExec, ir.OpCmpLT, ir.OpIfICmp, ir.OpAdd, ir.OpPopExec, ir.OpElseICmp, ir.OpPopExec, ir.OpWhileICmp, ir.OpJmpExecAny}
	if len(ops) != len(wantSeq) {
		t.Fatalf("got ops %v, want shape %v", ops, wantSeq)
	}
	for i, op := range wantSeq {
		if ops[i] != op {
			t.Fatalf("position %d: got %v, want %v (full %v)", i, ops[i], op, ops)
		}
	}
}

func TestRun_EmitsLogicalEndAndValidatesStack(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	buildDiamond(m)

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	foundNestingInit := false
	foundLogicalEnd := false
	for _, bref := range m.BlockOrder {
		m.Blocks.Get(bref).Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			if instr.Op == ir.OpMeta && len(instr.Srcs) == 1 && instr.Srcs[0].ImmBits == uint64(markerNestingInit) {
				foundNestingInit = true
			}
			if instr.Op == ir.OpMeta && len(instr.Srcs) == 1 && instr.Srcs[0].ImmBits == uint64(markerLogicalEnd) {
				foundLogicalEnd = true
			}
			return true
		})
	}
	if !foundNestingInit {
		t.Fatal("expected a nesting-counter init marker since the module has control flow")
	}
	if !foundLogicalEnd {
		t.Fatal("expected a logical-end marker on a block without an unconditional jump")
	}
}

func TestRun_LoopThenExitIsStackBalanced(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	buildTopTestedLoop(m)

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateExecStack_DetectsImbalance(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	m.Emit(b, ir.Instruction{Op: ir.OpIfICmp, Srcs: []ir.Register{ir.SSAReg(m.AllocSSA(), ir.Width16)}})
	// no matching pop_exec(1)

	if err := validateExecStack(m); err == nil {
		t.Fatal("expected an unbalanced-exec-stack error")
	}
}
