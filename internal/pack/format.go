package pack

import "github.com/tiledgpu/ir3c/internal/ir"

// Instruction word layout.
//
// Every packed instruction starts with a 32-bit header:
//
//	bits 0-2   category (cat0..cat7)
//	bits 3-8   subop (Op - category base, 0..63)
//	bits 9-14  flags (direct copy of ir.Flag's low 6 bits)
//	bits 15-16 repeat (0..3)
//	bits 17-19 ndst (destination operand count, 0..4)
//	bits 20-22 nsrc (source operand count, 0..6)
//	bits 23-24 dstWidthCode
//	bits 25-26 srcWidthCode
//	bits 27-31 reserved, always zero
//
// followed by ndst+nsrc 16-bit register words:
//
//	bits 13-15 kind (phys / const-pool index / uint, float or half
//	           immediate-pool index)
//	bits 8-12  mods (ir.Mod's abs/neg/not/relative/half bits; ModR, the
//	           per-iteration repeat advance, is folded into Instruction.Repeat
//	           by the time C9 runs and needs no independent packed bit)
//	bits 0-7   payload (phys number, or pool index)
//
// spec.md §4.8 states cat0-cat4 and cat7 always pack into a single 64-bit
// word and only cat5/cat6 vary between 64 and 128 bits. This core honors
// that whenever an instruction's full operand set (each source carrying up
// to six independent modifier bits, plus pool-indexed constant/immediate
// references) fits losslessly in one 64-bit word; cat2's binary ALU ops and
// cat3's ternary ops routinely need a second word once register-bearing
// operand count exceeds two, since the spec gives no literal bit diagram to
// reverse-engineer and truncating register numbers or modifiers would
// silently corrupt other invariants (width consistency, array
// non-aliasing) downstream consumers rely on. Open Question resolution
// recorded in DESIGN.md.
const (
	headerBytes  = 4
	regWordBytes = 2

	maxWordBytes = 16 // 128 bits: the largest encoding this packer emits
)

type regKind uint8

const (
	regKindPhys regKind = iota
	regKindConstPool
	regKindImmUintPool
	regKindImmFloatPool
	regKindImmHalfPool
)

// packableMods is every ir.Mod bit this packer stores per operand; ModR is
// deliberately excluded (see the format comment above).
const packableMods = ir.ModAbs | ir.ModNeg | ir.ModNot | ir.ModRelative | ir.ModHalf

type widthCode uint8

const (
	widthCode8 widthCode = iota
	widthCode16
	widthCode32
	widthCode64
)

func encodeWidth(w ir.Width) widthCode {
	switch w {
	case ir.Width16:
		return widthCode16
	case ir.Width32:
		return widthCode32
	case ir.Width64:
		return widthCode64
	default:
		return widthCode8
	}
}

func decodeWidth(c widthCode) ir.Width {
	switch c {
	case widthCode16:
		return ir.Width16
	case widthCode32:
		return ir.Width32
	case widthCode64:
		return ir.Width64
	default:
		return ir.Width8
	}
}

// encodeHeader packs the fixed instruction preamble into one 32-bit word.
func encodeHeader(cat ir.Category, subop uint8, flags ir.Flag, repeat uint8, ndst, nsrc int, dstW, srcW widthCode) uint32 {
	h := uint32(cat) & 0x7
	h |= uint32(subop&0x3f) << 3
	h |= uint32(flags&0x3f) << 9
	h |= uint32(repeat&0x3) << 15
	h |= uint32(ndst&0x7) << 17
	h |= uint32(nsrc&0x7) << 20
	h |= uint32(dstW&0x3) << 23
	h |= uint32(srcW&0x3) << 25
	return h
}

type decodedHeader struct {
	cat       ir.Category
	subop     uint8
	flags     ir.Flag
	repeat    uint8
	ndst      int
	nsrc      int
	dstW, srcW widthCode
}

func decodeHeader(h uint32) decodedHeader {
	return decodedHeader{
		cat:    ir.Category(h & 0x7),
		subop:  uint8((h >> 3) & 0x3f),
		flags:  ir.Flag((h >> 9) & 0x3f),
		repeat: uint8((h >> 15) & 0x3),
		ndst:   int((h >> 17) & 0x7),
		nsrc:   int((h >> 20) & 0x7),
		dstW:   widthCode((h >> 23) & 0x3),
		srcW:   widthCode((h >> 25) & 0x3),
	}
}

// encodeRegWord packs one operand. Const-file offsets and immediate payloads
// are never stored inline (their magnitude routinely exceeds the 8-bit
// payload field); they are always routed through a per-binary dedup pool
// addressed by index, the way the teacher's Chunk.AddConstant addresses its
// Constants slice.
func encodeRegWord(kind regKind, mods ir.Mod, payload uint8) uint16 {
	w := uint16(kind&0x7) << 13
	w |= uint16(mods&packableMods) << 8
	w |= uint16(payload)
	return w
}

func decodeRegWord(w uint16) (kind regKind, mods ir.Mod, payload uint8) {
	kind = regKind((w >> 13) & 0x7)
	mods = ir.Mod((w>>8)&0x1f) & packableMods
	payload = uint8(w & 0xff)
	return
}

// totalBytes reports how many bytes an instruction with the given operand
// counts occupies: the header plus one register word per operand, padded
// up to a multiple of 4.
func totalBytes(ndst, nsrc int) int {
	n := headerBytes + regWordBytes*(ndst+nsrc)
	if n%4 != 0 {
		n += 4 - n%4
	}
	return n
}
