// Package ssaopt implements C3, the fixed-point SSA optimizer of spec.md
// §4.2: copy propagation, dead-phi removal, phi-to-scalar, DCE, CSE,
// peephole branch-to-select, algebraic rewriting, constant folding, and
// preamble hoisting.
//
// Grounded on internal/compiler/hoisting_compiler.go's two-pass shape
// (collect candidates, then rewrite using what was collected) generalized
// from "hoist function declarations out of linear program order" to "hoist
// uniform, expensive expressions into an explicit preamble block", and on
// internal/jit/jit.go's notion of a cost-weighted tier selecting what is
// worth specializing — here repurposed as the per-category instruction cost
// table the hoisting budget is measured against.
package ssaopt

import (
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Options mirrors the subset of spec.md §6.3 that affects C3.
type Options struct {
	NoOptimize bool
	MaxRounds  int // 0 selects a generous default
}

// Run executes the fixed-point loop described in spec.md §4.2, then the
// late pass (algebraic identities, move-sink), then preamble hoisting.
// Property P4 ("running the SSA optimizer twice produces identical IR
// after the second run") holds because every sub-pass here is a pure
// function of the current IR that reports whether it changed anything, and
// Run stops the moment a full round changes nothing.
func Run(m *ir.Module, g gen.Generation, opts Options) error {
	if opts.NoOptimize {
		return nil
	}
	maxRounds := opts.MaxRounds
	if maxRounds == 0 {
		maxRounds = 64
	}

	for round := 0; round < maxRounds; round++ {
		changed := false
		changed = copyPropagate(m) || changed
		changed = removeDeadPhis(m) || changed
		changed = phiToScalar(m) || changed
		changed = deadCodeElim(m) || changed
		changed = commonSubexprElim(m) || changed
		changed = peepholeBranchToSelect(m) || changed
		changed = algebraicRewrite(m) || changed
		changed = constantFold(m) || changed
		if !changed {
			break
		}
	}

	lateAlgebraicIdentities(m)
	moveSink(m)
	deadCodeElim(m)

	return hoistPreamble(m, g)
}
