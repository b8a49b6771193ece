package copyprop

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

func TestDropIdentityMovs(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	r := ir.PhysReg(4, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{r}, Srcs: []ir.Register{r}})
	keepRef := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{ir.PhysReg(6, ir.Width32)}, Srcs: []ir.Register{r, ir.ImmUintReg(1, ir.Width32)}})

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := opsOf(m, b)
	if len(ops) != 1 || ops[0] != ir.OpAdd {
		t.Fatalf("expected identity mov to be dropped, got %v", ops)
	}
	if m.Instrs.Get(keepRef).Op != ir.OpAdd {
		t.Fatalf("surviving add should be unchanged")
	}
}

func TestResolveSplitCombine_ConsecutiveBecomesNoOp(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	d0, d1 := ir.PhysReg(8, ir.Width32), ir.PhysReg(10, ir.Width32)
	s0, s1 := ir.PhysReg(8, ir.Width32), ir.PhysReg(10, ir.Width32)
	ref := m.Emit(b, ir.Instruction{Op: ir.OpCombine, Dsts: []ir.Register{d0, d1}, Srcs: []ir.Register{s0, s1}})

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Instrs.Get(ref).Op != ir.OpMeta {
		t.Fatalf("consecutive combine should collapse to OpMeta, got %v", m.Instrs.Get(ref).Op)
	}
}

func TestResolveSplitCombine_MisalignedBecomesMoves(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	d0, d1 := ir.PhysReg(8, ir.Width32), ir.PhysReg(20, ir.Width32)
	s0, s1 := ir.PhysReg(30, ir.Width32), ir.PhysReg(32, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpSplit, Dsts: []ir.Register{d0, d1}, Srcs: []ir.Register{s0, s1}})

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := opsOf(m, b)
	movCount := 0
	for _, op := range ops {
		if op == ir.OpMov {
			movCount++
		}
	}
	if movCount != 2 {
		t.Fatalf("expected 2 explicit moves for a misaligned split, got %v", ops)
	}
}

func TestFoldSourceModifiers_SingleHopAbsorbsNeg(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	x := ir.PhysReg(2, ir.Width32)
	y := ir.PhysReg(4, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{y}, Srcs: []ir.Register{x.WithMod(ir.ModNeg)}})
	useRef := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{ir.PhysReg(6, ir.Width32)}, Srcs: []ir.Register{y, ir.ImmUintReg(1, ir.Width32)}})

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := opsOf(m, b)
	if len(ops) != 1 || ops[0] != ir.OpAdd {
		t.Fatalf("producer mov should be dropped once folded, got %v", ops)
	}
	use := m.Instrs.Get(useRef)
	if use.Srcs[0].Num != x.Num || use.Srcs[0].Mods&ir.ModNeg == 0 {
		t.Fatalf("expected consumer to read x directly with (neg), got %+v", use.Srcs[0])
	}
}

func TestFoldSourceModifiers_DoubleNegationCancels(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	x := ir.PhysReg(2, ir.Width32)
	useRef := m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{ir.PhysReg(6, ir.Width32)}, Srcs: []ir.Register{
		x.WithMod(ir.ModNeg), ir.ImmUintReg(1, ir.Width32),
	}})
	_ = useRef

	combined := combineMods(ir.ModNeg, ir.ModNeg)
	if combined&ir.ModNeg != 0 {
		t.Fatalf("neg(neg(x)) should cancel, got mods %v", combined)
	}

	absorbed := combineMods(ir.Mod(0), ir.ModAbs|ir.ModNeg)
	if absorbed&ir.ModNeg != 0 || absorbed&ir.ModAbs == 0 {
		t.Fatalf("abs(neg(x)) should leave only abs set, got %v", absorbed)
	}
}

func TestFoldSourceModifiers_MultipleUsesPreventsFold(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	x := ir.PhysReg(2, ir.Width32)
	y := ir.PhysReg(4, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{y}, Srcs: []ir.Register{x.WithMod(ir.ModNeg)}})
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{ir.PhysReg(6, ir.Width32)}, Srcs: []ir.Register{y, ir.ImmUintReg(1, ir.Width32)}})
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{ir.PhysReg(8, ir.Width32)}, Srcs: []ir.Register{y, ir.ImmUintReg(2, ir.Width32)}})

	if err := Run(m, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := opsOf(m, b)
	if ops[0] != ir.OpMov {
		t.Fatalf("producer with two consumers must not be folded away, got %v", ops)
	}
}
