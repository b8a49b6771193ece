package lower

import (
	"errors"
	"math"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

var errOffsetRange = errors.New("lower: texture offset component out of [-8, 7]")

// LowerProjective rewrites a txp (projective texture sample) into an
// explicit divide of every coordinate component by the projector, per
// spec.md §4.1 item 4 ("Projective texture ops (txp) are lowered to
// explicit divide").
func LowerProjective(m *ir.Module, block arena.Ref, coords []ir.Register, proj ir.Register) []ir.Register {
	rcp := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpRcp, Dsts: []ir.Register{rcp}, Srcs: []ir.Register{proj}})

	out := make([]ir.Register, len(coords))
	for i, c := range coords {
		d := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpMul, Dsts: []ir.Register{d}, Srcs: []ir.Register{c, rcp}})
		out[i] = d
	}
	return out
}

// LowerArrayLayer converts a float array-layer coordinate to the clamped
// integer form required by GLSL ES 3.20 (spec.md §4.1 item 4 / Scenario E):
// min(d-1, f32_to_u32(layer + 0.5)), where d is the ARRAY_SIZE_MINUS_1+1
// sysval for the texture's binding.
func LowerArrayLayer(m *ir.Module, block arena.Ref, layer, arraySizeMinus1 ir.Register) ir.Register {
	biased := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpAdd,
		Dsts: []ir.Register{biased},
		Srcs: []ir.Register{layer, ir.ImmFloatReg(math.Float32bits(0.5))},
	})
	asInt := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpCov, Dsts: []ir.Register{asInt}, Srcs: []ir.Register{biased}})

	clamped := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMin,
		Dsts: []ir.Register{clamped},
		Srcs: []ir.Register{asInt, arraySizeMinus1},
	})
	return clamped
}

// PackTexOffset packs a static {ox,oy,oz} texture offset, each required by
// invariant/P6 to lie in [-8, 7], into the 4-bit-per-component signed field
// spec.md §4.1 item 4 and P6 describe: "(o_x & 0xF) | ((o_y & 0xF) << 4) |
// ((o_z & 0xF) << 8)".
func PackTexOffset(ox, oy, oz int8) (uint32, error) {
	for _, o := range []int8{ox, oy, oz} {
		if o < -8 || o > 7 {
			return 0, errOffsetRange
		}
	}
	return uint32(ox)&0xF | (uint32(oy)&0xF)<<4 | (uint32(oz)&0xF)<<8, nil
}

// LowerCubeGrad expands a cube-map gradient sample's 3D ddx/ddy pair into
// the vector-gradient form the hardware texture unit expects (spec.md §4.1
// item 4: "cube-map 3D gradient cases are expanded to vector gradients").
// Cube gradients pass all three components of each derivative unmodified:
// the function returns ddx and ddy as given, and lowerOne appends all six
// components to the sample's sources.
func LowerCubeGrad(ddx, ddy []ir.Register) (outDdx, outDdy []ir.Register) {
	return ddx, ddy
}
