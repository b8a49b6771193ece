// Package cflow implements C4 (spec.md §4.3): lowering the structured
// if/else and loop shapes that survive C3 into the predicated-execution
// model of a GPU with no per-lane branch — explicit push_exec/pop_exec
// stack manipulation, if_icmp/else_icmp, and while_icmp/jmp_exec_any for
// loops.
//
// Grounded on internal/compiler/compiler.go's VisitIfExpr jump-backfill
// idiom: that visitor patches a forward jump's offset once the "then" and
// "else" bodies have been emitted; here the analogous backfill is block
// wiring — a header's two successors collapse into one straight-line
// successor once both arms have been absorbed into the header block.
package cflow

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/arena"
	ir3err "github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options configures a Run call.
type Options struct {
	NoValidate bool
}

// Marker kinds for the zero-width OpMeta instructions this pass emits.
// internal/ir has no dedicated "nesting counter init" or "logical end"
// opcode — both are structural bookkeeping the hardware microcode performs
// implicitly — so, following the convention internal/lower already uses for
// OpHIRTessLevelWrite's Repeat-encoded domain, the marker kind rides in
// Srcs[0] as a small immediate.
const (
	markerNestingInit uint32 = 1
	markerLogicalEnd  uint32 = 2
)

func metaMarker(kind uint32) ir.Instruction {
	return ir.Instruction{Op: ir.OpMeta, Srcs: []ir.Register{ir.ImmUintReg(kind, ir.Width8)}}
}

// Run lowers every structured if/else diamond and every canonical
// top-tested loop in m into predicated form, then stamps a p_logical_end
// marker at the tail of every block that does not already end with an
// unconditional jump (spec.md §4.3).
func Run(m *ir.Module, opts Options) error {
	anyCF := false

	for {
		changed := ifConvert(m)
		if changed {
			anyCF = true
		}
		if !changed {
			break
		}
	}

	for {
		changed := loopConvert(m)
		if changed {
			anyCF = true
		}
		if !changed {
			break
		}
	}

	if anyCF && len(m.BlockOrder) > 0 {
		entry := m.Blocks.Get(m.BlockOrder[0])
		head := entry.Head()
		init := m.Instrs.Alloc(metaMarker(markerNestingInit))
		if head != 0 {
			entry.InsertBefore(m.Instrs, init, head, m.BlockOrder[0])
		} else {
			entry.Append(m.Instrs, init, m.BlockOrder[0])
		}
	}

	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		if b.UnconditionalJump && b.Succs[1] == 0 {
			// already terminates logically via the jump itself
			continue
		}
		m.Emit(bref, metaMarker(markerLogicalEnd))
	}

	if !opts.NoValidate {
		return validateExecStack(m)
	}
	return nil
}

// validateExecStack checks P2 ("every push_exec(n) is matched by a
// pop_exec(n) on every path") without full per-path dataflow, by exploiting
// how this package always emits pushes and pops in fixed-shape matched
// sets rather than independently:
//
//   - if_icmp implicitly pushes one level on entry (spec.md §4.3); ifConvert
//     and loopConvert each always pair that with exactly one explicit
//     pop_exec(1) (the diamond's trailing pop, or a loop's continue pop).
//     So count(if_icmp) must equal count(pop_exec with n=1).
//   - push_exec(2) is only ever emitted by loopConvert's wrapper, always
//     paired with exactly one pop_exec(2) (the loop's break pop). So
//     count(push_exec with n=2) must equal count(pop_exec with n=2).
//
// A mismatch means an emission bug in this package, not a property of the
// input the pass should legitimately reject.
func validateExecStack(m *ir.Module) error {
	var ifICmp, pop1, push2, pop2 int
	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		b.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			switch instr.Op {
			case ir.OpIfICmp:
				ifICmp++
			case ir.OpPushExec:
				if instr.Srcs[0].ImmBits == 2 {
					push2++
				}
			case ir.OpPopExec:
				switch instr.Srcs[0].ImmBits {
				case 1:
					pop1++
				case 2:
					pop2++
				}
			}
			return true
		})
	}
	if ifICmp != pop1 {
		return ir3err.NewInternalBug("cflow", "unbalanced-exec-stack",
			fmt.Sprintf("%d if_icmp constructs but %d pop_exec(1), expected equal counts", ifICmp, pop1))
	}
	if push2 != pop2 {
		return ir3err.NewInternalBug("cflow", "unbalanced-exec-stack",
			fmt.Sprintf("%d push_exec(2) but %d pop_exec(2), expected equal counts", push2, pop2))
	}
	return nil
}
