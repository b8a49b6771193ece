package pack

import (
	"testing"

	"github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

func TestPack_RoundTripBinaryALU(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	dst := ir.PhysReg(4, ir.Width32)
	src0 := ir.PhysReg(2, ir.Width32).WithMod(ir.ModNeg)
	src1 := ir.ImmUintReg(7, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{dst}, Srcs: []ir.Register{src0, src1}})

	bin, err := Pack(m, gen.A6XX, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bin.InstrCount != 1 {
		t.Fatalf("expected 1 packed instruction, got %d", bin.InstrCount)
	}

	out, err := Disassemble(bin)
	if err != nil {
		t.Fatalf("disassemble failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 decoded instruction, got %d", len(out))
	}
	got := out[0]
	if got.Op != ir.OpAdd {
		t.Fatalf("expected OpAdd, got %v", got.Op)
	}
	if got.Dsts[0].Num != dst.Num || got.Dsts[0].Width != dst.Width {
		t.Fatalf("dst mismatch: %+v", got.Dsts[0])
	}
	if got.Srcs[0].Num != src0.Num || got.Srcs[0].Mods&ir.ModNeg == 0 {
		t.Fatalf("src0 mismatch: %+v", got.Srcs[0])
	}
	if !got.Srcs[1].IsImm() || uint32(got.Srcs[1].ImmBits) != 7 {
		t.Fatalf("src1 immediate mismatch: %+v", got.Srcs[1])
	}
}

func TestPack_RoundTripTernary(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	dst := ir.PhysReg(8, ir.Width32)
	s0, s1, s2 := ir.PhysReg(2, ir.Width32), ir.PhysReg(4, ir.Width32), ir.PhysReg(6, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpMad, Dsts: []ir.Register{dst}, Srcs: []ir.Register{s0, s1, s2}})

	bin, err := Pack(m, gen.A6XX, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := Disassemble(bin)
	if err != nil {
		t.Fatalf("disassemble failed: %v", err)
	}
	if len(out) != 1 || out[0].Op != ir.OpMad || len(out[0].Srcs) != 3 {
		t.Fatalf("expected a 3-source mad to round-trip, got %+v", out)
	}
	if out[0].Srcs[2].Num != s2.Num {
		t.Fatalf("third mad source mismatch: %+v", out[0].Srcs[2])
	}
}

func TestPack_ConstOperandRoundTrip(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	dst := ir.PhysReg(2, ir.Width32)
	c := ir.ConstReg(40, ir.Width32)
	m.Emit(b, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{dst}, Srcs: []ir.Register{c}})

	bin, err := Pack(m, gen.A6XX, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bin.ConstPool) != 1 || bin.ConstPool[0] != 40 {
		t.Fatalf("expected const pool [40], got %v", bin.ConstPool)
	}
	constRegionSize := getU32(bin.Header[4:8])
	if constRegionSize != 41 {
		t.Fatalf("expected header const-region size 41, got %d", constRegionSize)
	}
	out, err := Disassemble(bin)
	if err != nil {
		t.Fatalf("disassemble failed: %v", err)
	}
	if !out[0].Srcs[0].IsConst() || out[0].Srcs[0].ConstOff != 40 {
		t.Fatalf("const operand did not round-trip: %+v", out[0].Srcs[0])
	}
}

func TestPack_RejectsSatOnCat4(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	m.Emit(b, ir.Instruction{Op: ir.OpRcp, Dsts: []ir.Register{ir.PhysReg(2, ir.Width32)}, Srcs: []ir.Register{ir.PhysReg(4, ir.Width32)}, Flags: ir.FlagSat})

	_, err := Pack(m, gen.A6XX, Options{})
	if err == nil || !errors.Is(err, errors.InvariantViolation) {
		t.Fatalf("expected InvariantViolation for (sat) on cat4, got %v", err)
	}
}

func TestPack_RejectsSyncSYOnCat0(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	m.Emit(b, ir.Instruction{Op: ir.OpNop, Flags: ir.FlagSyncSY})

	_, err := Pack(m, gen.A6XX, Options{})
	if err == nil || !errors.Is(err, errors.InvariantViolation) {
		t.Fatalf("expected InvariantViolation for (sy) on cat0, got %v", err)
	}
}

func TestPack_InstructionCountCap(t *testing.T) {
	g := gen.A6XX
	g.MaxInstrCount = 2
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	for i := 0; i < 3; i++ {
		m.Emit(b, ir.Instruction{Op: ir.OpNop})
	}

	_, err := Pack(m, g, Options{})
	if err == nil || !errors.Is(err, errors.ResourceExhausted) {
		t.Fatalf("expected ResourceExhausted once instruction count exceeds the generation cap, got %v", err)
	}
}

func TestPack_SkipsResolvedMetaInstructions(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	m.Emit(b, ir.Instruction{Op: ir.OpMeta})
	m.Emit(b, ir.Instruction{Op: ir.OpNop})

	bin, err := Pack(m, gen.A6XX, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bin.InstrCount != 1 {
		t.Fatalf("expected OpMeta to be skipped, leaving 1 packed instruction, got %d", bin.InstrCount)
	}
}

func TestPack_SkipsInputMarkers(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	m.Emit(b, ir.Instruction{Op: ir.OpInput, Dsts: []ir.Register{ir.PhysReg(2, ir.Width32)}})
	m.Emit(b, ir.Instruction{Op: ir.OpNop})

	bin, err := Pack(m, gen.A6XX, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bin.InstrCount != 1 {
		t.Fatalf("expected OpInput to be skipped, leaving 1 packed instruction, got %d", bin.InstrCount)
	}
}
