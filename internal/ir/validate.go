package ir

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/arena"
	ir3err "github.com/tiledgpu/ir3c/internal/errors"
)

// Validate runs the subset of spec.md §3.2's invariants that hold across the
// whole pipeline (width consistency, repeat-group shape, exec-stack
// balance). Pass-specific invariants (SSA dominance pre-RA, physical-register
// dominance post-RA) are checked by the owning pass instead, since they
// require pass-local bookkeeping this package doesn't keep.
//
// Validate checks nothing about boolean values: it neither checks which
// opcodes produce them nor that they are 0 or 1. Booleans are kept in
// {0,1} only by construction, through the lowering in internal/lower/bool.go.
func Validate(m *Module, pass string) error {
	if err := checkWidths(m, pass); err != nil {
		return err
	}
	if err := checkRepeatGroups(m, pass); err != nil {
		return err
	}
	return checkExecBalance(m, pass)
}

func checkWidths(m *Module, pass string) error {
	var err error
	m.Instrs.All(func(ref arena.Ref, instr *Instruction) bool {
		if IsPseudo(instr.Op) {
			return true
		}
		if instr.Op == OpCov || instr.Op == OpSwz {
			return true // explicit conversion/extract, invariant 2 exempts these
		}
		dst := instr.Dst()
		if len(instr.Dsts) == 0 {
			return true
		}
		for _, src := range instr.Srcs {
			if src.IsImm() || src.IsConst() {
				continue // immediates/const reads are not width-bound to dst
			}
			if src.Width != dst.Width && src.Mods&ModHalf == 0 {
				err = ir3err.NewInvariantViolation(pass,
					fmt.Sprintf("instruction %d: source width %d != destination width %d", ref, src.Width, dst.Width))
				return false
			}
		}
		return true
	})
	return err
}

func checkRepeatGroups(m *Module, pass string) error {
	var err error
	m.Instrs.All(func(ref arena.Ref, instr *Instruction) bool {
		if instr.Repeat > 3 {
			err = ir3err.NewInvariantViolation(pass,
				fmt.Sprintf("instruction %d: repeat count %d exceeds 3", ref, instr.Repeat))
			return false
		}
		return true
	})
	return err
}

// checkExecBalance verifies invariant 6: every push_exec(n) is matched by a
// pop_exec(n) on every dynamic path, approximated here as a textual balance
// check over the blocks in program order. Dynamic paths are not checked,
// here or in internal/cflow, whose own check also compares opcode counts.
func checkExecBalance(m *Module, pass string) error {
	depth := 0
	var err error
	for _, bref := range m.BlockOrder {
		block := m.Blocks.Get(bref)
		block.Instrs(m.Instrs, func(_ arena.Ref, instr *Instruction) bool {
			switch instr.Op {
			case OpPushExec:
				depth += int(pushPopCount(instr))
			case OpPopExec:
				depth -= int(pushPopCount(instr))
				if depth < 0 {
					err = ir3err.NewInvariantViolation(pass, "pop_exec with no matching push_exec")
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	if depth != 0 {
		return ir3err.NewInvariantViolation(pass, fmt.Sprintf("unbalanced push_exec/pop_exec: net depth %d at module end", depth))
	}
	return nil
}

func pushPopCount(instr *Instruction) uint32 {
	if len(instr.Srcs) == 0 {
		return 1
	}
	src := instr.Srcs[0]
	if src.IsImm() {
		return uint32(src.ImmBits)
	}
	return 1
}

