package lower

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// TessDomain names the tessellation topology, which fixes the tess-factor
// layout (spec.md §4.1 item 3).
type TessDomain uint8

const (
	TessTriangles TessDomain = iota
	TessQuads
	TessIsolines
)

// TessFactorLayout describes how many outer/inner level components a
// topology reserves in the tess-factor region, and the total payload width
// written by the TCS epilogue (Scenario D).
type TessFactorLayout struct {
	OuterCount   int // logical outer levels (3 for triangles, 4 for quads, 2 for isolines)
	OuterWidth   int // outer slots actually reserved (triangles reserve 3+2 padding = 5)
	InnerCount   int
	PayloadWidth int // components written by the epilogue store
}

// LayoutFor returns the per-topology layout from spec.md §4.1 item 3:
// "triangles use 4 outer levels + 1 inner (but outer is 3-wide + 2
// reserved), quads use 4 outer + 2 inner, isolines use 2 outer + 0 inner."
func LayoutFor(d TessDomain) TessFactorLayout {
	switch d {
	case TessTriangles:
		return TessFactorLayout{OuterCount: 3, OuterWidth: 5, InnerCount: 1, PayloadWidth: 4}
	case TessQuads:
		return TessFactorLayout{OuterCount: 4, OuterWidth: 4, InnerCount: 2, PayloadWidth: 6}
	case TessIsolines:
		return TessFactorLayout{OuterCount: 2, OuterWidth: 2, InnerCount: 0, PayloadWidth: 2}
	default:
		return TessFactorLayout{}
	}
}

// TessIOAddress computes the explicit shared/global address for a per-vertex
// or per-patch I/O access (spec.md §4.1 item 3): "patch_offset +
// vertex_offset + attr_offset, computed from driver-supplied per-patch/
// per-vertex strides stored in const registers."
func TessIOAddress(m *ir.Module, block arena.Ref, patchID, vertexIndex, attrOffset ir.Register, patchStride, vertexStride ir.Register) ir.Register {
	patchOff := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMul,
		Dsts: []ir.Register{patchOff},
		Srcs: []ir.Register{patchID, patchStride},
	})

	vertOff := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMul,
		Dsts: []ir.Register{vertOff},
		Srcs: []ir.Register{vertexIndex, vertexStride},
	})

	sum1 := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpAdd,
		Dsts: []ir.Register{sum1},
		Srcs: []ir.Register{patchOff, vertOff},
	})

	addr := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpAdd,
		Dsts: []ir.Register{addr},
		Srcs: []ir.Register{sum1, attrOffset},
	})
	return addr
}

// EmitTessFactorEpilogue emits the TCS tess-level epilogue (Scenario D):
// guarded by "invocation == 0" (the caller already wraps the body in
// "invocation < outputVertexCount"), it writes the topology's payload as one
// vector store to tess_factor_base + patch_id*4 + 1.
func EmitTessFactorEpilogue(m *ir.Module, block arena.Ref, domain TessDomain, invocationID, patchID, tessFactorBase ir.Register, levels []ir.Register) arena.Ref {
	layout := LayoutFor(domain)
	if len(levels) != layout.PayloadWidth {
		panic("lower: tess factor epilogue given wrong level count for domain")
	}

	guard := ir.SSAReg(m.AllocSSA(), ir.Width32)
	guardRef := m.Emit(block, ir.Instruction{
		Op:   ir.OpCmpEQ,
		Dsts: []ir.Register{guard},
		Srcs: []ir.Register{invocationID, ir.ImmUintReg(0, ir.Width32)},
	})
	m.Predicates[guardRef] = true

	patchOff4 := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMul,
		Dsts: []ir.Register{patchOff4},
		Srcs: []ir.Register{patchID, ir.ImmUintReg(4, ir.Width32)},
	})
	addr1 := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpAdd,
		Dsts: []ir.Register{addr1},
		Srcs: []ir.Register{tessFactorBase, patchOff4},
	})
	addr := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpAdd,
		Dsts: []ir.Register{addr},
		Srcs: []ir.Register{addr1, ir.ImmUintReg(1, ir.Width32)},
	})

	store := ir.Instruction{
		Op:           ir.OpStg,
		Srcs:         append([]ir.Register{addr}, levels...),
		BarrierClass: ir.BarrierSharedW,
	}
	ref := m.Emit(block, store)
	m.Keep(ref)
	return ref
}
