// Package pack implements C9 (spec.md §4.8): the binary packer. It walks a
// fully lowered, scheduled, allocated and copy-propagated LIR module and
// emits a little-endian instruction-word stream plus the 16-byte shader
// header spec.md §6.2 describes, validating flag-combination legality and
// the generation's binary instruction-count cap (invariant 9) along the
// way.
//
// Grounded on the teacher's internal/vmregister/bytecode.go (iABC/iABx/
// iAsBx/iAx fixed-field word formats, CreateABC/decoding-method pairing)
// generalized from a 3-register scripting-language ISA to the cat0-cat7
// instruction categories; the pool-of-constants-addressed-by-index idiom
// comes from internal/bytecode/chunk.go's Chunk.Constants/AddConstant.
// Algorithm detail (category widths, flag legality) from original_source
// ir3_assembler.c/ir3_shader.c as named in spec.md's component table.
package pack

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options configures a Pack call. Empty today; reserved for a future
// debug-stream toggle shared with internal/inspector.
type Options struct{}

// Pack produces the binary for m under generation g.
func Pack(m *ir.Module, g gen.Generation, _ Options) (*Binary, error) {
	b := &Binary{Generation: g}
	constIndex := map[uint32]int{}
	var constPool []uint32
	var maxConstOff uint32
	count := 0

	for _, bref := range m.BlockOrder {
		blk := m.Blocks.Get(bref)
		var instrs []arena.Ref
		blk.Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
			instrs = append(instrs, ref)
			return true
		})
		for _, ref := range instrs {
			instr := m.Instrs.Get(ref)
			if instr.Op == ir.OpMeta || instr.Op == ir.OpInput {
				// Both are zero-width markers: OpMeta is C8's resolved
				// no-op, and OpInput's destination is a shader input that
				// already holds its value in a fixed physical register
				// before the shader starts executing, so by the time
				// regalloc has colored it there is nothing left to emit —
				// internal/meta reads the register straight off this
				// instruction's destination without it ever reaching the
				// binary stream.
				continue
			}
			if ir.IsPseudo(instr.Op) {
				return nil, errors.NewInternalBug(passName, "unlowered-pseudo-op",
					fmt.Sprintf("op %d reached the packer without being legalized by C8", instr.Op))
			}
			cat, ok := ir.CategoryOf(instr.Op)
			if !ok {
				return nil, errors.NewInternalBug(passName, "uncategorized-op",
					fmt.Sprintf("op %d has no packer category", instr.Op))
			}
			if err := validateFlags(cat, instr.Flags); err != nil {
				return nil, err
			}
			if err := validateOperandBudget(cat, len(instr.Dsts), len(instr.Srcs)); err != nil {
				return nil, err
			}
			words, off, err := encodeInstruction(m, &constIndex, &constPool, cat, instr)
			if err != nil {
				return nil, err
			}
			if off > maxConstOff {
				maxConstOff = off
			}
			b.Code = append(b.Code, words...)
			count++
		}
	}

	if count > g.MaxInstrCount {
		return nil, errors.NewResourceExhausted(passName,
			fmt.Sprintf("packed instruction count %d exceeds %s's cap of %d (invariant 9)", count, g.Name, g.MaxInstrCount))
	}

	b.InstrCount = count
	b.ConstPool = constPool
	b.ImmPool = append([]uint32(nil), m.Immediates...)
	constRegion := uint32(0)
	if len(constPool) > 0 {
		constRegion = maxConstOff + 1
	}
	b.Header = shaderHeader(g, constRegion, count)
	return b, nil
}

// encodeInstruction appends one instruction's header word and operand words
// to a growing byte stream. It returns those bytes plus the highest
// const-file offset this instruction referenced (0 if none), so Pack can
// track the constant-length region size spec.md §6.2 reports in the
// header.
func encodeInstruction(m *ir.Module, constIndex *map[uint32]int, constPool *[]uint32, cat ir.Category, instr *ir.Instruction) ([]byte, uint32, error) {
	subop, err := subopOf(instr.Op, cat)
	if err != nil {
		return nil, 0, err
	}

	dstW := widthCode8
	if len(instr.Dsts) > 0 {
		dstW = encodeWidth(instr.Dsts[0].Width)
	}
	srcW := widthCode8
	if len(instr.Srcs) > 0 {
		srcW = encodeWidth(instr.Srcs[0].Width)
	}

	header := encodeHeader(cat, subop, instr.Flags, instr.Repeat, len(instr.Dsts), len(instr.Srcs), dstW, srcW)

	out := make([]byte, 0, totalBytes(len(instr.Dsts), len(instr.Srcs)))
	out = appendU32(out, header)

	var maxConstOff uint32
	encodeOperand := func(r ir.Register) error {
		w, off, err := encodeOperandWord(m, constIndex, constPool, r)
		if err != nil {
			return err
		}
		if off > maxConstOff {
			maxConstOff = off
		}
		out = appendU16(out, w)
		return nil
	}
	for _, d := range instr.Dsts {
		if err := encodeOperand(d); err != nil {
			return nil, 0, err
		}
	}
	for _, s := range instr.Srcs {
		if err := encodeOperand(s); err != nil {
			return nil, 0, err
		}
	}
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out, maxConstOff, nil
}

func subopOf(op ir.Op, cat ir.Category) (uint8, error) {
	sub := int(op) - int(ir.CategoryBase(cat))
	if sub < 0 || sub > 0x3f {
		return 0, errors.NewResourceExhausted(passName,
			fmt.Sprintf("op %d's in-category index %d exceeds the 6-bit subop field", op, sub))
	}
	return uint8(sub), nil
}

func encodeOperandWord(m *ir.Module, constIndex *map[uint32]int, constPool *[]uint32, r ir.Register) (uint16, uint32, error) {
	switch {
	case r.IsPhys():
		if r.Num > 0xff {
			return 0, 0, errors.NewResourceExhausted(passName,
				fmt.Sprintf("physical register %d exceeds the packer's 8-bit register field", r.Num))
		}
		return encodeRegWord(regKindPhys, r.Mods, uint8(r.Num)), 0, nil

	case r.IsConst():
		idx, ok := (*constIndex)[r.ConstOff]
		if !ok {
			idx = len(*constPool)
			if idx > 0xff {
				return 0, 0, errors.NewResourceExhausted(passName,
					"const-file offset pool exceeded the packer's 256-entry budget")
			}
			*constPool = append(*constPool, r.ConstOff)
			(*constIndex)[r.ConstOff] = idx
		}
		return encodeRegWord(regKindConstPool, r.Mods, uint8(idx)), r.ConstOff, nil

	case r.IsImm():
		bits := uint32(r.ImmBits)
		kind := regKindImmUintPool
		switch r.ImmKind {
		case ir.ImmFloat:
			kind = regKindImmFloatPool
		case ir.ImmHalf:
			kind = regKindImmHalfPool
			bits = uint32(uint16(r.ImmBits))
		}
		if r.ImmKind == ir.ImmFloat && r.Width == ir.Width16 {
			// A constant-folded half value that never got narrowed past
			// float32 bits; narrow it now via half.go before interning.
			kind = regKindImmHalfPool
			bits = uint32(narrowToHalfBits(uint32(r.ImmBits)))
		}
		idx := m.InternImmediate(bits)
		if idx > 0xff {
			return 0, 0, errors.NewResourceExhausted(passName,
				"immediate pool exceeded the packer's 256-entry budget")
		}
		return encodeRegWord(kind, r.Mods, uint8(idx)), 0, nil

	default:
		return 0, 0, errors.NewInvariantViolation(passName, "operand carries an SSA index; regalloc should have already eliminated it")
	}
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}
