package pack

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/ir"
)

const passName = "pack"

// allowedFlags names, per category, which of ir.Flag's bits may legally
// appear (spec.md §4.8: "packing validates all flag combinations (e.g.
// (sat) on cat4 is illegal; (sy) on cat0 is illegal)").
var allowedFlags = map[ir.Category]ir.Flag{
	ir.Cat0: ir.FlagKill,
	ir.Cat1: ir.FlagSat | ir.FlagEndInput | ir.FlagSyncSS | ir.FlagSyncSY,
	ir.Cat2: ir.FlagSat | ir.FlagSyncSS | ir.FlagSyncSY | ir.FlagPredWrite | ir.FlagEndInput,
	ir.Cat3: ir.FlagSat | ir.FlagSyncSS | ir.FlagSyncSY | ir.FlagPredWrite,
	ir.Cat4: ir.FlagSyncSS | ir.FlagSyncSY | ir.FlagEndInput,
	ir.Cat5: ir.FlagSat | ir.FlagSyncSS | ir.FlagSyncSY | ir.FlagEndInput,
	ir.Cat6: ir.FlagSyncSS | ir.FlagSyncSY | ir.FlagEndInput,
	ir.Cat7: 0,
}

func validateFlags(cat ir.Category, flags ir.Flag) error {
	allowed := allowedFlags[cat]
	if bad := flags &^ allowed; bad != 0 {
		return errors.NewInvariantViolation(passName,
			fmt.Sprintf("flag combination %#x illegal on category cat%d", bad, cat)).
			WithDetail("spec.md §4.8 names (sat) on cat4 and (sy) on cat0 as canonical examples")
	}
	return nil
}

// validateOperandBudget reports whether ndst+nsrc operands fit this
// packer's 64/128-bit word budget for cat.
func validateOperandBudget(cat ir.Category, ndst, nsrc int) error {
	if ndst > 4 || nsrc > 6 {
		return errors.NewResourceExhausted(passName,
			fmt.Sprintf("cat%d instruction has %d destinations and %d sources, exceeding the packer's operand budget", cat, ndst, nsrc))
	}
	n := totalBytes(ndst, nsrc)
	if n > maxWordBytes {
		return errors.NewResourceExhausted(passName,
			fmt.Sprintf("cat%d instruction needs %d bytes, exceeding the 128-bit encoding budget", cat, n))
	}
	// spec.md §4.8 states cat0, cat1, cat4 and cat7 always pack into a
	// single 64-bit word; cat2/cat3 are relaxed to the same 128-bit budget
	// cat5/cat6 get (format.go's header comment records why).
	if (cat == ir.Cat0 || cat == ir.Cat1 || cat == ir.Cat4 || cat == ir.Cat7) && n > 8 {
		return errors.NewResourceExhausted(passName,
			fmt.Sprintf("cat%d must pack into a single 64-bit word per spec.md §4.8; this instruction needs %d bytes", cat, n))
	}
	return nil
}
