// Package meta implements C10 (spec.md §4.9): the metadata emitter. It
// walks a module after C9 has packed it and reports the data a driver
// needs to bind a compiled variant — input/output register locations,
// const-file region layout, and per-variant statistics — without touching
// disk itself; SPEC_FULL.md's shaderdb export and disk-backed driver cache
// are separate, higher-level concerns (internal/shaderdb, the caller).
//
// Grounded on the teacher's internal/reporting package: ExportReport's
// dispatch-on-format idiom is reused one level up by internal/shaderdb,
// while this package itself plays the role reporting.go's statistics
// gathering (coverage percentages, per-file summaries) plays for a test
// run — a flat, serializable summary struct built by one pass over
// already-computed state, not by re-running the analysis.
package meta

import "github.com/tiledgpu/ir3c/internal/ir"

// InputDescriptor reports one input attribute's final binding.
type InputDescriptor struct {
	Name          string
	BaseRegister  uint32
	ComponentMask uint8
	Interp        ir.InterpMode
	Barycentric   bool
}

// OutputDescriptor reports one output varying's final binding.
type OutputDescriptor struct {
	Name         string
	BaseRegister uint32
	Kind         ir.OutputKind
}

// ConstRegionDescriptor reports one named const-file extent, in vec4
// units, per spec.md §4.9's "driver-params, UBO-base, SSBO-size,
// image-dims, TFBO, immediates" layout.
type ConstRegionDescriptor struct {
	Name  string
	Base  uint32
	Count uint32
}

// Stats reports per-variant compilation statistics (spec.md §4.9).
type Stats struct {
	InstructionCount int
	HalfRegsUsed     int
	FullRegsUsed     int
	SpillCount       int
	FillCount        int
	LoopCount        int
}

// Descriptor is the complete per-variant metadata report C10 produces.
type Descriptor struct {
	Stage        ir.Stage
	Generation   string
	Inputs       []InputDescriptor
	Outputs      []OutputDescriptor
	ConstRegions []ConstRegionDescriptor
	Stats        Stats
	Key          string // crypto/sha256 driver-cache key, see key.go

	// VariantID is a google/uuid identifier stamped by internal/compiler
	// once a compile finishes, for driver-side correlation with §4.9 stats
	// across a batch (SPEC_FULL.md §C). Build never sets this itself: a
	// content hash (Key) and an opaque per-compile identity are different
	// things, and only the caller orchestrating a batch knows the latter.
	VariantID string
}
