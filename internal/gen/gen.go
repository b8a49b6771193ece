// Package gen implements the "dynamic dispatch over generation → trait with
// static generations" design note of spec.md §9: a Generation value exposes
// every generation-specific decision (latency tables, encoding widths,
// const-file caps) so the pipeline never branches on a raw chip-id.
//
// Fresh code: table-driven, following the const-block-with-grouping-comments
// idiom of internal/ir/opcode.go rather than any one teacher file (the
// teacher has no notion of hardware generations).
package gen

// Generation holds every parameter named in spec.md §6.4, plus the latency
// constants §4.4/§4.6 need.
type Generation struct {
	Name string

	MergedRegs    bool // half/full registers share one physical file
	HasISAMSSBO   bool // texture-cache-backed SSBO load available
	HasPreamble   bool // preamble primitive supported
	ConstUploadUnit int // alignment in vec4 of each uploaded const region
	MaxConst        int // size of const file in vec4
	FlatBypass      bool
	PointerSize     int // 1 or 2, in 32-bit words

	// Scheduling/packing constants not exposed as explicit options but
	// varying by generation in the original source.
	SFULatency      int // (ss) window, in emitted instructions
	TexMemLatency   int // (sy) window, in emitted instructions
	MaxDelaySlots   int // maximum consecutive nops a scheduler may insert
	MaxInstrCount   int // binary instruction-count cap (invariant 9)
	HighLatencyHW   bool // selects the 2*16*4 vs 2*12*4 live-value threshold of §4.4
	HalfRegCount    int
	FullRegCount    int
}

// LivePressureThreshold implements the §4.4 rule: "2·16·4 for high-latency
// hardware, 2·12·4 otherwise".
func (g Generation) LivePressureThreshold() int {
	if g.HighLatencyHW {
		return 2 * 16 * 4
	}
	return 2 * 12 * 4
}

// ConstFileScalarCap returns MaxConst in scalar (not vec4) units.
func (g Generation) ConstFileScalarCap() int {
	return g.MaxConst * 4
}

// A6XX approximates the a6xx family: merged register file, no preamble,
// 640 vec4 const file cap, 8/10-cycle (ss)/(sy) windows (spec.md §4.6).
var A6XX = Generation{
	Name:            "a6xx",
	MergedRegs:      true,
	HasISAMSSBO:     true,
	HasPreamble:     false,
	ConstUploadUnit: 4,
	MaxConst:        640,
	FlatBypass:      false,
	PointerSize:     2,
	SFULatency:      8,
	TexMemLatency:   10,
	MaxDelaySlots:   6,
	MaxInstrCount:   1 << 16,
	HighLatencyHW:   true,
	HalfRegCount:    128,
	FullRegCount:    48,
}

// A7XX approximates the a7xx family: adds the preamble primitive and a
// smaller 512 vec4 const-file cap, per spec.md's two named budgets.
var A7XX = Generation{
	Name:            "a7xx",
	MergedRegs:      true,
	HasISAMSSBO:     true,
	HasPreamble:     true,
	ConstUploadUnit: 4,
	MaxConst:        512,
	FlatBypass:      true,
	PointerSize:     1,
	SFULatency:      8,
	TexMemLatency:   10,
	MaxDelaySlots:   6,
	MaxInstrCount:   1 << 17,
	HighLatencyHW:   false,
	HalfRegCount:    96,
	FullRegCount:    64,
}

// ByName resolves a generation by its Name field, for driver-facing config.
func ByName(name string) (Generation, bool) {
	switch name {
	case "a6xx":
		return A6XX, true
	case "a7xx":
		return A7XX, true
	default:
		return Generation{}, false
	}
}
