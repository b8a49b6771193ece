package lower

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// LowerBarycentricAtSample rewrites load_barycentric_at_sample(idx) into
// load_sample_pos_from_id(idx) followed by load_barycentric_at_offset(pos),
// per spec.md §4.1 item 5.
func LowerBarycentricAtSample(m *ir.Module, block arena.Ref, sampleIdx ir.Register, ijPixel [2]ir.Register, invW ir.Register) [2]ir.Register {
	pos := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpLdl, Dsts: []ir.Register{pos}, Srcs: []ir.Register{sampleIdx}, BarrierClass: ir.BarrierSharedR})
	return LowerBarycentricAtOffset(m, block, pos, ijPixel, invW)
}

// LowerBarycentricAtOffset implements the manual perspective-correction
// rewrite of spec.md §4.1 item 5: given ij_pixel and 1/w, compute
// sij = (ij.x/w, ij.y/w, 1/w), take ddx(sij) and ddy(sij), linearly
// interpolate by offset, then divide x,y by the new w.
func LowerBarycentricAtOffset(m *ir.Module, block arena.Ref, offset ir.Register, ijPixel [2]ir.Register, invW ir.Register) [2]ir.Register {
	sij := [3]ir.Register{}
	for i, ij := range ijPixel {
		s := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpMul, Dsts: []ir.Register{s}, Srcs: []ir.Register{ij, invW}})
		sij[i] = s
	}
	sij[2] = invW

	// ir3_nir_lower_load_barycentric_at_offset.c computes foo = nir_fddx(sij),
	// bar = nir_fddy(sij): real cross-lane quad derivatives, not a same-value
	// subtraction. OpDsx/OpDsy (ir3_DSX/ir3_DSY) are the LIR opcodes a quad's
	// lanes exchange values through; unlike every other op emitted by this
	// pass they cannot be constant-folded from a single lane's operand value.
	var ddx, ddy [3]ir.Register
	for i, s := range sij {
		dx := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpDsx, Dsts: []ir.Register{dx}, Srcs: []ir.Register{s}})
		ddx[i] = dx
		dy := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpDsy, Dsts: []ir.Register{dy}, Srcs: []ir.Register{s}})
		ddy[i] = dy
	}

	var interp [3]ir.Register
	for i := range sij {
		termX := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpMad, Dsts: []ir.Register{termX}, Srcs: []ir.Register{ddx[i], offset, sij[i]}})
		termY := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpMad, Dsts: []ir.Register{termY}, Srcs: []ir.Register{ddy[i], offset, termX}})
		interp[i] = termY
	}

	newInvW := interp[2]
	newW := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(block, ir.Instruction{Op: ir.OpRcp, Dsts: []ir.Register{newW}, Srcs: []ir.Register{newInvW}})

	var out [2]ir.Register
	for i := 0; i < 2; i++ {
		o := ir.SSAReg(m.AllocSSA(), ir.Width32)
		m.Emit(block, ir.Instruction{Op: ir.OpMul, Dsts: []ir.Register{o}, Srcs: []ir.Register{interp[i], newW}})
		out[i] = o
	}
	return out
}
