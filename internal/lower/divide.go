// Package lower implements C2 (HIR lowering & normalization, spec.md §4.1):
// flattening vector/variable-width HIR ops into the scalar, 16/32-bit LIR
// internal/ir represents, and legalizing texture, tessellation,
// barycentric, boolean, transcendental, and buffer-offset intrinsics.
//
// Grounded on internal/compiler/compiler.go's visitor-over-AST shape
// (generalized here to a pass-over-instructions shape, since the input is
// already an IR rather than a parse tree) and, for exact algorithms, on
// _examples/original_source/mesalib/src/freedreno/ir3/ir3_nir_lower_*.c.
package lower

import (
	"math/bits"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// MagicU is the classical unsigned fast-divide constant set: for a divisor
// q, P/q == (umul_high(P + increment(add), M) >> shift), optionally preceded
// by a right shift of P by PreShift when q is even (spec.md §4.1 item 2).
type MagicU struct {
	Multiplier uint32
	Shift      uint32
	Add        bool // pre-increment the dividend before the multiply
	PreShift   uint32
}

// ComputeMagicU implements the Hacker's Delight "magicu" algorithm (Figure
// 10-9) for 32-bit unsigned division, after first factoring out q's trailing
// zero bits into a pre-shift so the core algorithm only ever runs on an odd
// divisor (spec.md §4.1: "Powers of two become shifts ... pre-shift if Q is
// even").
func ComputeMagicU(q uint32) MagicU {
	if q == 1 {
		return MagicU{Multiplier: 1, Shift: 0}
	}
	if q&(q-1) == 0 {
		// Power of two: pure shift, no multiply at all.
		return MagicU{Multiplier: 1, Shift: uint32(bits.TrailingZeros32(q))}
	}
	preShift := uint32(bits.TrailingZeros32(q))
	odd := q >> preShift

	m, s, add := magicuOdd(odd)
	if add {
		// magicuOdd's add case yields a multiplier for the add-back form;
		// the umul_high(P+1, M) form used here needs the rounded-down
		// multiplier floor(2^(32+l)/odd) with l = floor(log2(odd)).
		l := uint32(31 - bits.LeadingZeros32(odd))
		m = uint32((uint64(1) << (32 + l)) / uint64(odd))
		s = l
	}
	return MagicU{Multiplier: m, Shift: s, Add: add, PreShift: preShift}
}

// magicuOdd runs the textbook algorithm assuming d is odd (d != 1).
func magicuOdd(d uint32) (m uint32, shift uint32, add bool) {
	nc := ^uint32(0) - (-d)%d
	p := uint32(31)
	q1 := uint32(0x80000000) / nc
	r1 := uint32(0x80000000) - q1*nc
	q2 := uint32(0x7FFFFFFF) / d
	r2 := uint32(0x7FFFFFFF) - q2*d

	for {
		p++
		if r1 >= nc-r1 {
			q1 = 2*q1 + 1
			r1 = 2*r1 - nc
		} else {
			q1 = 2 * q1
			r1 = 2 * r1
		}
		if r2+1 >= d-r2 {
			if q2 >= 0x7FFFFFFF {
				add = true
			}
			q2 = 2*q2 + 1
			r2 = r2 + r2 + 1 - d
		} else {
			if q2 >= 0x80000000 {
				add = true
			}
			q2 = 2 * q2
			r2 = r2 + r2 + 1
		}
		delta := d - 1 - r2
		if p >= 64 || (q1 >= delta && !(q1 == delta && r1 == 0)) {
			break
		}
	}
	return q2 + 1, p - 32, add
}

// LowerConstDivide rewrites "x / q" (q a compile-time constant, q != 0) into
// the scalar LIR sequence of spec.md §4.1 item 2 / Scenario A:
//
//	Q == 1             -> identity (the dividend register itself)
//	Q a power of two   -> one ushr
//	Q == 2^32-1        -> an equality select (x == q-of-all-ones ? 1 : 0),
//	                      since only a dividend equal to the max value can
//	                      produce quotient 1, every other dividend yields 0
//	otherwise          -> mov_imm(multiplier), mov_imm(post_shift),
//	                      umul_high, ushr (optionally preceded by a ushr by
//	                      PreShift, and the umul_high source pre-incremented
//	                      when Add is set)
func LowerConstDivide(m *ir.Module, block arena.Ref, dividend ir.Register, q uint32) ir.Register {
	if q == 0 {
		panic("lower: divide by zero constant reached LowerConstDivide")
	}
	if q == 1 {
		return dividend
	}
	if q == ^uint32(0) {
		dst := ir.SSAReg(m.AllocSSA(), dividend.Width)
		m.Emit(block, ir.Instruction{
			Op:   ir.OpCmpEQ,
			Dsts: []ir.Register{dst},
			Srcs: []ir.Register{dividend, ir.ImmUintReg(q, dividend.Width)},
		})
		return dst
	}
	magic := ComputeMagicU(q)
	if magic.Multiplier == 1 && !magic.Add {
		// Pure power-of-two path: ushr by Shift (PreShift is 0 in this case
		// because ComputeMagicU returns the power-of-two branch directly).
		dst := ir.SSAReg(m.AllocSSA(), dividend.Width)
		m.Emit(block, ir.Instruction{
			Op:   ir.OpUShr,
			Dsts: []ir.Register{dst},
			Srcs: []ir.Register{dividend, ir.ImmUintReg(magic.Shift, dividend.Width)},
		})
		return dst
	}

	src := dividend
	if magic.PreShift != 0 {
		pre := ir.SSAReg(m.AllocSSA(), dividend.Width)
		m.Emit(block, ir.Instruction{
			Op:   ir.OpUShr,
			Dsts: []ir.Register{pre},
			Srcs: []ir.Register{dividend, ir.ImmUintReg(magic.PreShift, dividend.Width)},
		})
		src = pre
	}

	multImm := ir.SSAReg(m.AllocSSA(), dividend.Width)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMovImm,
		Dsts: []ir.Register{multImm},
		Srcs: []ir.Register{ir.ImmUintReg(magic.Multiplier, dividend.Width)},
	})

	mulSrc := src
	if magic.Add {
		inc := ir.SSAReg(m.AllocSSA(), dividend.Width)
		m.Emit(block, ir.Instruction{
			Op:   ir.OpAdd,
			Dsts: []ir.Register{inc},
			Srcs: []ir.Register{src, ir.ImmUintReg(1, dividend.Width)},
		})
		mulSrc = inc
	}

	hi := ir.SSAReg(m.AllocSSA(), dividend.Width)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpUMulHigh,
		Dsts: []ir.Register{hi},
		Srcs: []ir.Register{mulSrc, multImm},
	})

	shiftImm := ir.SSAReg(m.AllocSSA(), dividend.Width)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpMovImm,
		Dsts: []ir.Register{shiftImm},
		Srcs: []ir.Register{ir.ImmUintReg(magic.Shift, dividend.Width)},
	})

	dst := ir.SSAReg(m.AllocSSA(), dividend.Width)
	m.Emit(block, ir.Instruction{
		Op:   ir.OpUShr,
		Dsts: []ir.Register{dst},
		Srcs: []ir.Register{hi, shiftImm},
	})
	return dst
}
