package pack

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Disassemble decodes b.Code back into the flat instruction sequence it was
// packed from, verifying property P3 ("binary-pack followed by
// binary-disassemble ... produces an identical LIR modulo pseudo-op
// removal"). Block boundaries are not reconstructed; callers that need them
// already have the pre-pack Module and use Disassemble only to validate
// round-trip fidelity, the way internal/inspector's verbose-disasm stream
// does.
func Disassemble(b *Binary) ([]ir.Instruction, error) {
	var out []ir.Instruction
	code := b.Code
	for len(code) > 0 {
		if len(code) < headerBytes {
			return nil, errors.NewInvariantViolation(passName, "truncated instruction header")
		}
		h := decodeHeader(getU32(code[0:4]))
		n := totalBytes(h.ndst, h.nsrc)
		if len(code) < n {
			return nil, errors.NewInvariantViolation(passName, "truncated instruction body")
		}
		instr, err := decodeInstruction(b, h, code[headerBytes:n])
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
		code = code[n:]
	}
	return out, nil
}

func decodeInstruction(b *Binary, h decodedHeader, body []byte) (ir.Instruction, error) {
	op := ir.CategoryBase(h.cat) + ir.Op(h.subop)
	instr := ir.Instruction{
		Op:     op,
		Flags:  h.flags,
		Repeat: h.repeat,
	}
	for i := 0; i < h.ndst; i++ {
		r, err := decodeOperand(b, getU16(body[i*2:i*2+2]), h.dstW)
		if err != nil {
			return ir.Instruction{}, err
		}
		instr.Dsts = append(instr.Dsts, r)
	}
	for i := 0; i < h.nsrc; i++ {
		off := (h.ndst + i) * 2
		r, err := decodeOperand(b, getU16(body[off:off+2]), h.srcW)
		if err != nil {
			return ir.Instruction{}, err
		}
		instr.Srcs = append(instr.Srcs, r)
	}
	return instr, nil
}

func decodeOperand(b *Binary, w uint16, width widthCode) (ir.Register, error) {
	kind, mods, payload := decodeRegWord(w)
	wd := decodeWidth(width)
	var r ir.Register
	switch kind {
	case regKindPhys:
		r = ir.PhysReg(uint32(payload), wd)
	case regKindConstPool:
		if int(payload) >= len(b.ConstPool) {
			return ir.Register{}, errors.NewInvariantViolation(passName,
				fmt.Sprintf("const-pool index %d out of range", payload))
		}
		r = ir.ConstReg(b.ConstPool[payload], wd)
	case regKindImmUintPool:
		v, err := poolValue(b, payload)
		if err != nil {
			return ir.Register{}, err
		}
		r = ir.ImmUintReg(v, wd)
	case regKindImmFloatPool:
		v, err := poolValue(b, payload)
		if err != nil {
			return ir.Register{}, err
		}
		r = ir.ImmFloatReg(v)
	case regKindImmHalfPool:
		v, err := poolValue(b, payload)
		if err != nil {
			return ir.Register{}, err
		}
		r = ir.ImmHalfReg(uint16(v))
	default:
		return ir.Register{}, errors.NewInvariantViolation(passName, fmt.Sprintf("unknown packed operand kind %d", kind))
	}
	r.Mods = mods
	return r, nil
}

func poolValue(b *Binary, idx uint8) (uint32, error) {
	if int(idx) >= len(b.ImmPool) {
		return 0, errors.NewInvariantViolation(passName, fmt.Sprintf("immediate-pool index %d out of range", idx))
	}
	return b.ImmPool[idx], nil
}
