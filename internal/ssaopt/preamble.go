package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// instrCost implements the estimator of spec.md §4.2: "cat1-cat3 ops at 1,
// cat4 (SFU) at 4, cat5 (texture) at 8, cat6 (memory) at 8, phis at 2;
// moves/conversions that fold into a source modifier cost 0."
func instrCost(op ir.Op) int {
	switch op {
	case ir.OpMov, ir.OpCov:
		return 0
	case ir.OpPhi:
		return 2
	}
	cat, ok := ir.CategoryOf(op)
	if !ok {
		return 1
	}
	switch cat {
	case ir.Cat1, ir.Cat2, ir.Cat3:
		return 1
	case ir.Cat4:
		return 4
	case ir.Cat5, ir.Cat6:
		return 8
	default:
		return 1
	}
}

// preambleBudgetScalars bounds how much of the const file a shader's
// preamble outputs may occupy, leaving the rest for UBO promotion and
// driver params (spec.md §4.2: "a bounded budget of preamble const-file
// space prevents unbounded hoisting").
const preambleBudgetScalars = 64

// hoistPreamble implements "opt_preamble" (spec.md §4.2): a first pass
// collects candidate instructions (all-uniform operands, cost over
// threshold, no side effect), mirroring
// internal/compiler/hoisting_compiler.go's collect-then-rewrite shape; a
// second pass moves candidates, in program order until the scalar budget
// is spent, into an explicit preamble block prepended to the module. The
// instruction itself is moved; no load is left at its original site.
//
// Divergence analysis (which SSA values are uniform across a wave) is out
// of scope for this core in isolation — see SPEC_FULL.md's non-goals — so
// this pass treats an instruction as hoistable only when every operand is
// itself an immediate, a const-file read, or already-hoisted preamble
// output; this is the conservative, always-correct subset of "uniform"
// reachable without a driver-supplied divergence oracle.
func hoistPreamble(m *ir.Module, g gen.Generation) error {
	if !g.HasPreamble {
		return nil
	}

	const costThreshold = 3

	uniform := map[uint32]bool{}
	type candidate struct {
		block, ref arena.Ref
		cost       int
	}
	var candidates []candidate

	forEachInstr(m, func(bref, ref arena.Ref, instr *ir.Instruction) bool {
		if hasSideEffect(m, ref, instr) || ir.IsTexOrMem(instr.Op) {
			return true
		}
		allUniform := true
		for _, s := range instr.Srcs {
			if s.IsSSA() && !uniform[s.Num] {
				allUniform = false
				break
			}
			if !s.IsSSA() && !s.IsImm() && !s.IsConst() {
				allUniform = false
				break
			}
		}
		dst := instr.Dst()
		if allUniform && dst.IsSSA() {
			uniform[dst.Num] = true
			cost := instrCost(instr.Op)
			if cost > costThreshold {
				candidates = append(candidates, candidate{bref, ref, cost})
			}
		}
		return true
	})

	if len(candidates) == 0 {
		return nil
	}

	entryRef := m.BlockOrder[0]
	preambleRef := m.NewBlock()
	oldOrder := m.BlockOrder[:len(m.BlockOrder)-1]
	m.BlockOrder = append([]arena.Ref{preambleRef}, oldOrder...)
	for i, b := range m.BlockOrder {
		m.Blocks.Get(b).Index = i
	}
	m.Blocks.Get(preambleRef).AddSucc(entryRef)
	m.Blocks.Get(preambleRef).UnconditionalJump = true
	m.Blocks.Get(entryRef).Preds = append(m.Blocks.Get(entryRef).Preds, preambleRef)

	spent := 0
	const scalarsPerHoist = 1
	for _, c := range candidates {
		if spent+scalarsPerHoist > preambleBudgetScalars {
			break
		}
		srcBlock := m.Blocks.Get(c.block)
		srcBlock.Remove(m.Instrs, c.ref)
		m.Blocks.Get(preambleRef).Append(m.Instrs, c.ref, preambleRef)
		spent += scalarsPerHoist
	}

	return nil
}
