package meta

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sort"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// KeyInputs names the driver-cache key's non-module inputs (SPEC_FULL.md
// §D.3): the generation a variant was compiled for, plus the set of
// recognized options (spec.md §6.3) enabled for that compile.
type KeyInputs struct {
	Generation string
	Options    []string
}

// VariantKey hashes (generation, options, module shape) into the
// hex-encoded sha256 digest a driver can use as a cache key, grounded on
// the teacher's internal/build.Builder checksum (sha256.New plus
// incremental Write calls) and internal/security's Sum256-over-bytes
// idiom. It is meant to be called on the HIR module handed to internal/
// compiler before lowering begins — cheap enough to compute before paying
// for a full compile, and stable across compiles of the same source
// because it hashes instruction shape (opcode, operand count/kind, block
// topology), never SSA numbering or anything a later pass renumbers.
func VariantKey(inputs KeyInputs, m *ir.Module) string {
	h := sha256.New()
	io.WriteString(h, inputs.Generation)
	h.Write([]byte{0})

	opts := append([]string(nil), inputs.Options...)
	sort.Strings(opts)
	for _, o := range opts {
		io.WriteString(h, o)
		h.Write([]byte{0})
	}

	writeModuleShape(h, m)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func writeModuleShape(h io.Writer, m *ir.Module) {
	writeU8(h, uint8(m.Stage))
	writeU32(h, uint32(len(m.BlockOrder)))
	for _, bref := range m.BlockOrder {
		blk := m.Blocks.Get(bref)
		blk.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			writeU32(h, uint32(instr.Op))
			writeU8(h, uint8(len(instr.Dsts)))
			writeU8(h, uint8(len(instr.Srcs)))
			writeU8(h, uint8(instr.Repeat))
			writeU16(h, uint16(instr.Flags))
			for _, r := range instr.Dsts {
				writeOperandShape(h, r)
			}
			for _, r := range instr.Srcs {
				writeOperandShape(h, r)
			}
			return true
		})
		writeU32(h, 0xffffffff) // block terminator, avoids op-stream ambiguity across block boundaries
	}
}

func writeOperandShape(h io.Writer, r ir.Register) {
	writeU8(h, uint8(boolToInt(r.IsSSA()))<<3|uint8(boolToInt(r.IsPhys()))<<2|uint8(boolToInt(r.IsImm()))<<1|uint8(boolToInt(r.IsConst())))
	writeU8(h, uint8(r.Width))
	writeU8(h, uint8(r.Mods))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func writeU8(h io.Writer, v uint8)   { h.Write([]byte{v}) }
func writeU16(h io.Writer, v uint16) { h.Write([]byte{byte(v), byte(v >> 8)}) }
func writeU32(h io.Writer, v uint32) {
	h.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}
