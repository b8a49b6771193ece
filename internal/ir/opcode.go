// Package ir implements the Module/Block/Instruction/Register/Array data
// model of spec.md §3 (C1: "Arena + IR primitives").
//
// Grounded on the teacher's internal/bytecode/opcodes.go (a flat iota const
// block grouped by comment banners) and internal/vmregister/bytecode.go
// (instruction-format documentation blocks, iABC/iABx/iAsBx/iAx), generalized
// from a stack/register scripting-language ISA to the cat0–cat7 LIR opcode
// set of spec.md §4.8.
package ir

// Category selects the instruction's encoding group (spec.md §4.8).
type Category uint8

const (
	Cat0 Category = iota // control flow: branch, jump, end, nop
	Cat1                 // move / conversion
	Cat2                 // binary ALU
	Cat3                 // ternary ALU (mad, select)
	Cat4                 // SFU (rcp, rsqrt, log2, exp2, sin_pt, cos_pt)
	Cat5                 // texture
	Cat6                 // memory
	Cat7                 // sync / barrier
)

// Op identifies an opcode. Values are grouped by Category; CategoryOf
// derives the category from the opcode without a separate lookup table.
type Op uint16

const (
	opCat0Base Op = iota * 64
	opCat1Base
	opCat2Base
	opCat3Base
	opCat4Base
	opCat5Base
	opCat6Base
	opCat7Base
	opPseudoBase // meta/pseudo ops that never reach the packer directly
)

const (
	// ------------------------------------------------------------------
	// cat0: control flow
	// ------------------------------------------------------------------
	OpNop Op = opCat0Base + iota
	OpBr
	OpJump
	OpEnd
	OpIfICmp  // if_icmp: push_exec driven by a comparison result
	OpElseICmp
	OpWhileICmp
	OpJmpExecAny
	OpPushExec
	OpPopExec
	OpKill
	OpDemote
	OpGetOne // hardware "get-one" primitive selecting a single lane for the preamble
	OpShps   // shader-preamble-start
	OpShpe   // shader-preamble-end
)

const (
	// ------------------------------------------------------------------
	// cat1: move / conversion
	// ------------------------------------------------------------------
	OpMov Op = opCat1Base + iota
	OpMovImm
	OpCov // type-converting move (width or signedness change)
	OpSwz // swizzle/shuffle move used by split/combine lowering
)

const (
	// ------------------------------------------------------------------
	// cat2: binary ALU
	// ------------------------------------------------------------------
	OpAdd Op = opCat2Base + iota
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpUShr
	OpMin
	OpMax
	OpCmpEQ
	OpCmpNE
	OpCmpLT
	OpCmpLE
	OpCmpGT
	OpCmpGE
	OpUMulHigh // used by the unsigned fast-divide lowering (umul_high)
	OpBaryF    // barycentric-weighted interpolation
	OpDsx      // cross-lane quad derivative, d/dx (ir3_DSX)
	OpDsy      // cross-lane quad derivative, d/dy (ir3_DSY)
)

const (
	// ------------------------------------------------------------------
	// cat3: ternary ALU
	// ------------------------------------------------------------------
	OpMad Op = opCat3Base + iota
	OpSel // select(cond, a, b)
	OpSad
)

const (
	// ------------------------------------------------------------------
	// cat4: SFU
	// ------------------------------------------------------------------
	OpRcp Op = opCat4Base + iota
	OpRsq
	OpLog2
	OpExp2
	OpSinPt1
	OpSinPt2
)

const (
	// ------------------------------------------------------------------
	// cat5: texture
	// ------------------------------------------------------------------
	OpSam Op = opCat5Base + iota // generic sample (coord/lod/bias/grad/cmp/off)
	OpGetLod
	OpGetSize
	OpGetInfo
)

const (
	// ------------------------------------------------------------------
	// cat6: memory
	// ------------------------------------------------------------------
	OpLoadConstIR3 Op = opCat6Base + iota // load_const_ir3: const-file read
	OpLdg                                 // global (SSBO/image) load
	OpStg                                 // global store
	OpLdl                                 // shared/local load
	OpStl                                 // shared/local store
	OpLdp                                 // UBO pointer-relative load (pre-promotion)
	OpAtomicAdd
	OpAtomicExch
	OpAtomicCmpExch
	OpResInfo
)

const (
	// ------------------------------------------------------------------
	// cat7: sync / barrier
	// ------------------------------------------------------------------
	OpBar Op = opCat7Base + iota // compute workgroup barrier
	OpFence
)

const (
	// ------------------------------------------------------------------
	// pseudo-ops: legalized away before C9, never packed directly
	// ------------------------------------------------------------------
	OpPhi Op = opPseudoBase + iota
	OpSplit
	OpCombine
	OpInput
	OpMeta // p_logical_end and other zero-width markers
	OpSpill
	OpFill
	OpParallelCopy // phi-resolution move at a predecessor block end
)

const (
	// ------------------------------------------------------------------
	// HIR-level intrinsics: the input form C2 consumes (spec.md §4.1,
	// §6.1). These never reach C3 onward; every HIR op is replaced by one
	// or more of the LIR ops above during internal/lower's passes.
	// ------------------------------------------------------------------
	opHIRBase Op = opPseudoBase + 256

	OpHIRUDiv Op = opHIRBase + iota // unsigned integer divide by arbitrary operand
	OpHIRUMod                       // unsigned integer modulo
	OpHIRTxp                        // projective texture sample
	OpHIRTexArraySample             // sample2DArray-style: last coord component is a layer
	OpHIRTexCubeGrad                // cube-map gradient sample (3D gradient expansion)
	OpHIRLoadBarycentricAtSample
	OpHIRLoadBarycentricAtOffset
	OpHIRSin
	OpHIRCos
	OpHIRB2F // bool -> float
	OpHIRB2I // bool -> int
	OpHIRF2B // float -> bool
	OpHIRI2B // int -> bool
	OpHIRSSBOLoad
	OpHIRSSBOStore
	OpHIRUBOLoad
	OpHIRTessLevelWrite
	OpHIRBallot
	OpHIRElect
)

// IsHIR reports whether op is one of the HIR-level intrinsics consumed by
// internal/lower and never seen past C2.
func IsHIR(op Op) bool {
	return op >= opHIRBase
}

// CategoryOf returns the encoding category for op, or false for a pseudo-op
// that has not yet been legalized by C8.
func CategoryOf(op Op) (Category, bool) {
	switch {
	case op < opCat1Base:
		return Cat0, true
	case op < opCat2Base:
		return Cat1, true
	case op < opCat3Base:
		return Cat2, true
	case op < opCat4Base:
		return Cat3, true
	case op < opCat5Base:
		return Cat4, true
	case op < opCat6Base:
		return Cat5, true
	case op < opCat7Base:
		return Cat6, true
	case op < opPseudoBase:
		return Cat7, true
	default:
		return 0, false
	}
}

// IsPseudo reports whether op is a meta-instruction that must be lowered
// away (by C8 or earlier) before binary packing.
func IsPseudo(op Op) bool {
	return op >= opPseudoBase
}

// CategoryBase returns the first Op value belonging to cat, so a packer can
// compute an opcode's in-category subop index as op - CategoryBase(cat).
func CategoryBase(cat Category) Op {
	return Op(cat) * 64
}

// IsSFU reports whether op executes on the special-function unit, which
// drives the (ss) sync-flag window of §4.6 / P1.
func IsSFU(op Op) bool {
	cat, ok := CategoryOf(op)
	return ok && cat == Cat4
}

// IsTexOrMem reports whether op is a texture or memory access, which drives
// the (sy) sync-flag window of §4.6.
func IsTexOrMem(op Op) bool {
	cat, ok := CategoryOf(op)
	return ok && (cat == Cat5 || cat == Cat6)
}
