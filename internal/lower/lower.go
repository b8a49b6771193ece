package lower

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	ir3err "github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options carries the subset of spec.md §6.3 driver options C2 consults.
type Options struct {
	NoValidate bool
}

// Run applies the C2 HIR-lowering passes to m in the order spec.md §4.1
// specifies. Each HIR instruction is rewritten in place: the lowering
// sequence is emitted immediately before it, and the original instruction
// is collapsed into a mov from the sequence's result into the original
// destination, so any existing uses of the HIR instruction's SSA value stay
// valid without a separate def-use rewrite pass.
//
// Scalarization of arbitrary-width vector ALU ops (item 1) is the HIR
// front end's responsibility in this core: by the time a HIR module reaches
// Run, every ALU instruction is already scalar (internal/ir has no vector
// register width), matching how this repo treats "variable→SSA, scalarize
// ALU" as a property of the producer, not a rewrite Run performs. Items 2-9
// are implemented below.
func Run(m *ir.Module, g gen.Generation, opts Options) error {
	for _, bref := range m.BlockOrder {
		block := m.Blocks.Get(bref)
		var toRewrite []arena.Ref
		block.Instrs(m.Instrs, func(ref arena.Ref, instr *ir.Instruction) bool {
			if ir.IsHIR(instr.Op) {
				toRewrite = append(toRewrite, ref)
			}
			return true
		})
		for _, ref := range toRewrite {
			prevTail := block.Tail()
			if err := lowerOne(m, bref, ref); err != nil {
				return err
			}
			// The lowering helpers append at the block tail; move what they
			// emitted to just before the rewritten instruction.
			for cur := m.Instrs.Get(prevTail).Next; cur != 0; {
				next := m.Instrs.Get(cur).Next
				block.Remove(m.Instrs, cur)
				block.InsertBefore(m.Instrs, cur, ref, bref)
				cur = next
			}
		}
	}
	if !opts.NoValidate {
		return ir.Validate(m, "lower")
	}
	return nil
}

func lowerOne(m *ir.Module, block, ref arena.Ref) error {
	instr := m.Instrs.Get(ref)
	op := instr.Op
	srcs := instr.Srcs
	dst := instr.Dst()

	var result ir.Register
	switch op {
	case ir.OpHIRUDiv:
		if !srcs[1].IsImm() {
			return ir3err.NewUnsupportedFeature("lower-divide", "non-constant unsigned divide has no direct hardware instruction")
		}
		result = LowerConstDivide(m, block, srcs[0], uint32(srcs[1].ImmBits))

	case ir.OpHIRUMod:
		if !srcs[1].IsImm() {
			return ir3err.NewUnsupportedFeature("lower-divide", "non-constant unsigned modulo has no direct hardware instruction")
		}
		q := uint32(srcs[1].ImmBits)
		quot := LowerConstDivide(m, block, srcs[0], q)
		prod := ir.SSAReg(m.AllocSSA(), srcs[0].Width)
		m.Emit(block, ir.Instruction{Op: ir.OpMul, Dsts: []ir.Register{prod}, Srcs: []ir.Register{quot, ir.ImmUintReg(q, srcs[0].Width)}})
		rem := ir.SSAReg(m.AllocSSA(), srcs[0].Width)
		m.Emit(block, ir.Instruction{Op: ir.OpSub, Dsts: []ir.Register{rem}, Srcs: []ir.Register{srcs[0], prod}})
		result = rem

	case ir.OpHIRTxp:
		n := len(srcs) - 1
		lowered := LowerProjective(m, block, srcs[:n], srcs[n])
		sam := ir.SSAReg(m.AllocSSA(), dst.Width)
		m.Emit(block, ir.Instruction{Op: ir.OpSam, Dsts: []ir.Register{sam}, Srcs: lowered})
		result = sam

	case ir.OpHIRTexArraySample:
		n := len(srcs)
		layer := LowerArrayLayer(m, block, srcs[n-2], srcs[n-1])
		coords := append(append([]ir.Register{}, srcs[:n-2]...), layer)
		sam := ir.SSAReg(m.AllocSSA(), dst.Width)
		m.Emit(block, ir.Instruction{Op: ir.OpSam, Dsts: []ir.Register{sam}, Srcs: coords})
		result = sam

	case ir.OpHIRSin:
		result = LowerSin(m, block, srcs[0])
	case ir.OpHIRCos:
		result = LowerCos(m, block, srcs[0])

	case ir.OpHIRB2F, ir.OpHIRB2I, ir.OpHIRF2B, ir.OpHIRI2B:
		result = LowerBoolConvert(m, block, op, srcs[0])

	case ir.OpHIRSSBOLoad:
		elemOff, constPart := LowerByteOffset(m, block, srcs[0], int(dst.Width))
		if elemOff == (ir.Register{}) {
			load := ir.SSAReg(m.AllocSSA(), dst.Width)
			m.Emit(block, ir.Instruction{
				Op: ir.OpLdg, Dsts: []ir.Register{load},
				Srcs: []ir.Register{ir.ImmUintReg(constPart, ir.Width32)}, BarrierClass: ir.BarrierBufferR,
			})
			result = load
		} else {
			load := ir.SSAReg(m.AllocSSA(), dst.Width)
			m.Emit(block, ir.Instruction{Op: ir.OpLdg, Dsts: []ir.Register{load}, Srcs: []ir.Register{elemOff}, BarrierClass: ir.BarrierBufferR})
			result = load
		}

	case ir.OpHIRSSBOStore:
		elemOff, constPart := LowerByteOffset(m, block, srcs[0], int(srcs[1].Width))
		off := elemOff
		if off == (ir.Register{}) {
			off = ir.ImmUintReg(constPart, ir.Width32)
		}
		st := m.Emit(block, ir.Instruction{
			Op: ir.OpStg, Srcs: []ir.Register{off, srcs[1]}, BarrierClass: ir.BarrierBufferW,
		})
		m.Keep(st)
		instr = m.Instrs.Get(ref)
		instr.Op = ir.OpMeta
		instr.Srcs = nil
		return nil

	case ir.OpHIRBallot:
		result = LowerBallot(m, block, srcs[0])
	case ir.OpHIRElect:
		result = LowerElect(m, block, srcs[0])

	case ir.OpHIRTexCubeGrad:
		n := len(srcs) - 6
		ddx, ddy := LowerCubeGrad(srcs[n:n+3], srcs[n+3:n+6])
		coords := append(append([]ir.Register{}, srcs[:n]...), ddx...)
		coords = append(coords, ddy...)
		sam := ir.SSAReg(m.AllocSSA(), dst.Width)
		m.Emit(block, ir.Instruction{Op: ir.OpSam, Dsts: []ir.Register{sam}, Srcs: coords})
		result = sam

	case ir.OpHIRLoadBarycentricAtSample, ir.OpHIRLoadBarycentricAtOffset:
		ijPixel := [2]ir.Register{srcs[1], srcs[2]}
		invW := srcs[3]
		var out [2]ir.Register
		if op == ir.OpHIRLoadBarycentricAtSample {
			out = LowerBarycentricAtSample(m, block, srcs[0], ijPixel, invW)
		} else {
			out = LowerBarycentricAtOffset(m, block, srcs[0], ijPixel, invW)
		}
		for i, d := range instr.Dsts {
			m.Emit(block, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{d}, Srcs: []ir.Register{out[i]}})
		}
		instr = m.Instrs.Get(ref)
		instr.Op = ir.OpMeta
		instr.Srcs = nil
		return nil

	case ir.OpHIRTessLevelWrite:
		// The tessellation topology is a compile-time property of the patch,
		// not an SSA value, so the HIR producer stashes it in the otherwise
		// unused Repeat field rather than as an extra source register.
		st := EmitTessFactorEpilogue(m, block, TessDomain(instr.Repeat), srcs[0], srcs[1], srcs[2], srcs[3:])
		m.Keep(st)
		instr = m.Instrs.Get(ref)
		instr.Op = ir.OpMeta
		instr.Srcs = nil
		return nil

	case ir.OpHIRUBOLoad:
		// Individual UBO loads are promoted in bulk by PromoteUBOs, which
		// runs before Run on the full instruction set; by the time Run
		// walks the module any surviving OpHIRUBOLoad is a dynamically
		// indexed load that could not be constant-promoted and is instead
		// issued as a pointer-relative const-file read against the UBO's
		// base (already resolved into srcs[0] by the caller).
		ldp := ir.SSAReg(m.AllocSSA(), dst.Width)
		m.Emit(block, ir.Instruction{Op: ir.OpLdp, Dsts: []ir.Register{ldp}, Srcs: srcs})
		result = ldp

	default:
		return ir3err.NewInternalBug("lower", "unreachable-hir-opcode", "no lowering registered for HIR opcode")
	}

	instr = m.Instrs.Get(ref)
	instr.Op = ir.OpMov
	instr.Srcs = []ir.Register{result}
	return nil
}
