package lower

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// PromoteUBOs runs the constant-UBO-load promotion analysis (spec.md §4.1
// item 9, Scenario C) over the whole module and rewrites every statically
// addressed OpHIRUBOLoad into a const-file read, before Run walks the
// remaining HIR. A load is statically addressed when both its UBO index and
// its byte offset are compile-time constants; anything else is left for
// Run's OpHIRUBOLoad case, which issues a dynamic pointer-relative load
// instead.
//
// driverParamScalars and streamOutScalars reserve const-file space ahead of
// the promoted ranges, per DESIGN.md's Open Question 2 decision.
func PromoteUBOs(m *ir.Module, g gen.Generation, driverParamScalars, streamOutScalars int) error {
	type site struct {
		block, ref arena.Ref
		UBOLoadSite
	}
	var sites []site

	for _, bref := range m.BlockOrder {
		block := m.Blocks.Get(bref)
		block.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			if instr.Op != ir.OpHIRUBOLoad {
				return true
			}
			if len(instr.Srcs) < 3 {
				return true
			}
			ubo, off, size := instr.Srcs[0], instr.Srcs[1], instr.Srcs[2]
			if !ubo.IsImm() || !off.IsImm() || !size.IsImm() {
				return true
			}
			sites = append(sites, site{
				block: bref, ref: ref,
				UBOLoadSite: UBOLoadSite{
					UBO:        int(ubo.ImmBits),
					ByteOffset: uint32(off.ImmBits),
					SizeBytes:  uint32(size.ImmBits),
				},
			})
			return true
		})
	}
	if len(sites) == 0 {
		return nil
	}

	plain := make([]UBOLoadSite, len(sites))
	for i, s := range sites {
		plain[i] = s.UBOLoadSite
	}

	budget := RemainingBudget(g.ConstFileScalarCap(), driverParamScalars, streamOutScalars)
	allocBase := m.DriverParams.Base + m.DriverParams.Count
	ranges, offsets, err := AnalyzeAndPromote(plain, allocBase, budget, uint32(g.ConstUploadUnit))
	if err != nil {
		return err
	}
	for _, r := range ranges {
		m.AddUBORange(r)
	}

	for i, s := range sites {
		instr := m.Instrs.Get(s.ref)
		instr.Op = ir.OpMov
		instr.Srcs = []ir.Register{ir.ConstReg(offsets[i], instr.Dst().Width)}
	}
	return nil
}
