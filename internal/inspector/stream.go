package inspector

import (
	"fmt"
	"strings"

	"github.com/tiledgpu/ir3c/internal/ir"
	"github.com/tiledgpu/ir3c/internal/pack"
)

// StreamDisassembly decodes bin with pack.Disassemble and broadcasts one
// Event per decoded instruction to hub, in order. It is meant to be called
// right after C9 packs a variant, gated behind the verbose-disasm option
// (spec.md §6.3) — hub can be nil, in which case StreamDisassembly still
// returns the decoded text (useful for a CLI running without -inspect) but
// broadcasts nothing.
func StreamDisassembly(hub *Hub, shaderID string, bin *pack.Binary) ([]string, error) {
	instrs, err := pack.Disassemble(bin)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(instrs))
	for i, instr := range instrs {
		text := formatInstruction(instr)
		lines = append(lines, text)
		if hub == nil {
			continue
		}
		ev := Event{ShaderID: shaderID, Seq: i, Text: text}
		if err := hub.Broadcast(ev); err != nil {
			return lines, err
		}
	}
	return lines, nil
}

// formatInstruction renders a single decoded instruction as a terse,
// human-readable line. No teacher source disassembles to text, so this is
// a small, self-contained formatter rather than an adaptation of existing
// code.
func formatInstruction(instr ir.Instruction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "op%d", instr.Op)
	if instr.Repeat > 0 {
		fmt.Fprintf(&b, ".r%d", instr.Repeat)
	}
	if len(instr.Dsts) > 0 {
		b.WriteString(" ")
		for i, d := range instr.Dsts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatRegister(d))
		}
		b.WriteString(" =")
	}
	for _, s := range instr.Srcs {
		b.WriteString(" ")
		b.WriteString(formatRegister(s))
	}
	return b.String()
}

func formatRegister(r ir.Register) string {
	switch {
	case r.IsPhys():
		return fmt.Sprintf("r%d", r.Num)
	case r.IsSSA():
		return fmt.Sprintf("%%%d", r.Num)
	case r.IsConst():
		return fmt.Sprintf("c[%d]", r.ConstOff)
	case r.IsImm():
		return fmt.Sprintf("#%d", r.ImmBits)
	default:
		return "?"
	}
}
