package lower

import (
	"testing"

	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// TestAnalyzeAndPromote_ScenarioC reproduces spec.md §8 Scenario C verbatim:
// three loads from UBO 0 at byte offsets 16, 32, 48 (each a 4-component
// vec), which must merge into a single upload-plan entry [start=0, end=64]
// given the a6xx/a7xx ConstUploadUnit of 4 vec4s (64-byte granularity) —
// not [start=16, end=64], which an alignment rule based only on the merged
// cluster's raw start would produce.
func TestAnalyzeAndPromote_ScenarioC(t *testing.T) {
	sites := []UBOLoadSite{
		{UBO: 0, ByteOffset: 16, SizeBytes: 16},
		{UBO: 0, ByteOffset: 32, SizeBytes: 16},
		{UBO: 0, ByteOffset: 48, SizeBytes: 16},
	}
	ranges, offsets, err := AnalyzeAndPromote(sites, 0, 10000, uint32(gen.A6XX.ConstUploadUnit))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("got %d ranges, want 1 (all three sites merge)", len(ranges))
	}
	if ranges[0].UBO != 0 || ranges[0].Start != 0 || ranges[0].End != 64 {
		t.Fatalf("ubo0 range = %+v, want start=0 end=64", ranges[0])
	}
	// Each load becomes load_const_ir3(base=R/4 + k*4) for k in {1,2,3}:
	// offset 16 is the second vec4 (k=1) of the promoted range, 32 is the
	// third (k=2), 48 is the fourth (k=3).
	base := ranges[0].ConstOff
	wantScalarOff := []uint32{base + 4, base + 8, base + 12}
	for i, want := range wantScalarOff {
		if offsets[i] != want {
			t.Fatalf("site %d offset = %d, want %d", i, offsets[i], want)
		}
	}
}

// TestAnalyzeAndPromote_MergesAcrossDistinctUBOs covers the multi-UBO case:
// neighboring loads from the same UBO merge into one range, a load from a
// different UBO gets its own.
func TestAnalyzeAndPromote_MergesAcrossDistinctUBOs(t *testing.T) {
	sites := []UBOLoadSite{
		{UBO: 0, ByteOffset: 16, SizeBytes: 16},
		{UBO: 0, ByteOffset: 32, SizeBytes: 16},
		{UBO: 1, ByteOffset: 0, SizeBytes: 4},
	}
	ranges, offsets, err := AnalyzeAndPromote(sites, 0, 10000, uint32(gen.A6XX.ConstUploadUnit))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 2 {
		t.Fatalf("got %d ranges, want 2 (one merged range per UBO)", len(ranges))
	}
	if ranges[0].UBO != 0 || ranges[0].Start != 0 || ranges[0].End != 64 {
		t.Fatalf("ubo0 range = %+v, want start=0 end=64", ranges[0])
	}
	if offsets[0] == offsets[1] {
		t.Fatal("distinct offsets within the same UBO should not collide")
	}
	if ranges[1].UBO != 1 {
		t.Fatalf("ubo1 range = %+v", ranges[1])
	}
}

func TestAnalyzeAndPromote_BudgetExceededIsResourceExhausted(t *testing.T) {
	sites := []UBOLoadSite{{UBO: 0, ByteOffset: 0, SizeBytes: 256}}
	_, _, err := AnalyzeAndPromote(sites, 0, 4, uint32(gen.A6XX.ConstUploadUnit))
	if err == nil {
		t.Fatal("expected a budget error")
	}
}

func TestRemainingBudget_ReservesDriverParamsAndStreamOut(t *testing.T) {
	got := RemainingBudget(gen.A6XX.ConstFileScalarCap(), 64, 32)
	want := uint32(gen.A6XX.ConstFileScalarCap() - 64 - 32)
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestRemainingBudget_ClampsAtZero(t *testing.T) {
	if got := RemainingBudget(10, 8, 8); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestPromoteUBOs_RewritesConstantLoadToConstReg(t *testing.T) {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()
	dst := ir.SSAReg(m.AllocSSA(), ir.Width32)
	ref := m.Emit(b, ir.Instruction{
		Op:   ir.OpHIRUBOLoad,
		Dsts: []ir.Register{dst},
		Srcs: []ir.Register{
			ir.ImmUintReg(0, ir.Width32),
			ir.ImmUintReg(0, ir.Width32),
			ir.ImmUintReg(4, ir.Width32),
		},
	})

	if err := PromoteUBOs(m, gen.A6XX, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	instr := m.Instrs.Get(ref)
	if instr.Op != ir.OpMov {
		t.Fatalf("op = %v, want OpMov", instr.Op)
	}
	if !instr.Srcs[0].IsConst() {
		t.Fatalf("src = %+v, want a const-file register", instr.Srcs[0])
	}
}
