package pack

import "github.com/tiledgpu/ir3c/internal/gen"

// Binary is the packed output of C9: a little-endian instruction stream
// plus the side pools its register words index into. Grounded on the
// teacher's bytecode.Chunk (Code []byte, Constants []interface{}), split
// here into a const-offset pool and an immediate pool since spec.md §3.1
// keeps those two address spaces distinct.
type Binary struct {
	Header [16]byte

	// Code is the instruction-word stream, spec.md §6.2's "stream of 64 or
	// 128-bit instruction words".
	Code []byte

	// ConstPool holds the distinct const-file scalar offsets referenced by
	// the program, addressed by regWord payload index.
	ConstPool []uint32

	// ImmPool mirrors the module's deduplicated immediate pool at the time
	// packing finished (spec.md §3.1: "deduplicated 32-bit words").
	ImmPool []uint32

	InstrCount int
	Generation gen.Generation
}

// shaderHeader builds the 16-byte header spec.md §6.2 requires: half/full
// register counts, the constant-length region size, and a generation tag.
func shaderHeader(g gen.Generation, constRegionScalars uint32, instrCount int) [16]byte {
	var h [16]byte
	putU16(h[0:2], uint16(g.HalfRegCount))
	putU16(h[2:4], uint16(g.FullRegCount))
	putU32(h[4:8], constRegionScalars)
	copy(h[8:12], generationTag(g.Name))
	putU32(h[12:16], uint32(instrCount))
	return h
}

func generationTag(name string) []byte {
	tag := make([]byte, 4)
	copy(tag, name)
	return tag
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
