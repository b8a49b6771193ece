// Module is the top-level compilation unit (spec.md §3.1).
package ir

import (
	"github.com/tiledgpu/ir3c/internal/arena"
)

// Stage is the shader stage a Module was built for (spec.md §1).
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
	StageTessControl
	StageTessEval
	StageGeometry
)

// InterpMode selects how a fragment input's value varies across a
// primitive (spec.md §4.9).
type InterpMode uint8

const (
	InterpSmooth        InterpMode = iota // perspective-correct
	InterpNoPerspective                   // screen-space linear
	InterpFlat                            // provoking-vertex value, no interpolation
)

// InputAttr is one shader-stage input binding. The HIR producer registers
// one of these per attribute (vertex) or varying (fragment) before handing
// the module to Run; Def names the OpInput instruction whose destination
// carries the value, so that once regalloc assigns it a physical register
// the metadata emitter can report that as the attribute's base register
// without needing its own parallel tracking of register assignment.
type InputAttr struct {
	Name          string
	Def           arena.Ref
	ComponentMask uint8
	Interp        InterpMode
	Barycentric   bool // value feeds a load_barycentric rather than baryf directly
}

// OutputKind classifies a vertex-stage output for the position-first,
// user-second, point-size-last layout spec.md §4.9 requires.
type OutputKind uint8

const (
	OutputUser OutputKind = iota
	OutputPosition
	OutputPointSize
)

// OutputVarying is one shader-stage output binding, resolved to a base
// register the same way InputAttr is: by pointing at the instruction that
// produces the value rather than duplicating register-assignment tracking.
type OutputVarying struct {
	Name string
	Def  arena.Ref
	Kind OutputKind
}

// ConstRegionKind labels a reserved const-file region for the per-variant
// layout report spec.md §4.9 describes, beyond the driver-param and UBO
// regions Module already tracks in dedicated fields.
type ConstRegionKind uint8

const (
	ConstRegionSSBOSize ConstRegionKind = iota
	ConstRegionImageDims
	ConstRegionTFBO
)

// ConstRegion reserves a const-file extent, in vec4 units, for layout
// metadata that has no dedicated Module field of its own.
type ConstRegion struct {
	Kind  ConstRegionKind
	Base  uint32
	Count uint32
}

// UBORange is one entry of the UBO upload plan (spec.md §3.1).
type UBORange struct {
	UBO        int
	Start, End uint32 // byte range [Start, End)
	ConstOff   uint32 // const-file offset (scalar components) where it lands
}

// DriverParamLayout reserves const-file slots for system values (spec.md
// §3.1: "vertex id base, local group size, etc.").
type DriverParamLayout struct {
	Base  uint32 // const-file offset in scalar components
	Count uint32
	Names []string // debug-only: one name per reserved component
}

// Module holds the arena, the ordered block list, arrays, and the constant
// pools shared by every pass in the pipeline.
type Module struct {
	Arena *arena.Arena

	Blocks *arena.Pool[Block]
	Instrs *arena.Pool[Instruction]

	BlockOrder []arena.Ref // program order, index == Block.Index

	Arrays []*Array

	// Immediate pool: deduplicated 32-bit words, addressed by index into
	// this slice once placed into the first vec4 slots of the const file.
	Immediates []uint32
	immIndex   map[uint32]int // dedup lookup

	UBOUploads    []UBORange
	DriverParams  DriverParamLayout

	Inputs       []InputAttr
	Outputs      []OutputVarying
	ConstRegions []ConstRegion

	// Predicates is the set of instructions whose result feeds the
	// predicate register (spec.md §3.1).
	Predicates map[arena.Ref]bool

	// Keeps is the set of instructions that must survive DCE because of an
	// observable side effect (memory write, discard, barrier, ...).
	Keeps map[arena.Ref]bool

	Stage Stage

	nextSSA uint32
}

// NewModule allocates an empty Module with its own arena.
func NewModule(stage Stage) *Module {
	return &Module{
		Arena:      arena.New(),
		Blocks:     arena.NewPool[Block](),
		Instrs:     arena.NewPool[Instruction](),
		immIndex:   make(map[uint32]int),
		Predicates: make(map[arena.Ref]bool),
		Keeps:      make(map[arena.Ref]bool),
		Stage:      stage,
	}
}

// NewBlock allocates a new, empty block and appends it to BlockOrder.
func (m *Module) NewBlock() arena.Ref {
	idx := len(m.BlockOrder)
	ref := m.Blocks.Alloc(Block{Index: idx})
	m.BlockOrder = append(m.BlockOrder, ref)
	return ref
}

// AllocSSA reserves and returns a fresh SSA value index (invariant 1: "a
// module in SSA form has exactly one definition per SSA index").
func (m *Module) AllocSSA() uint32 {
	m.nextSSA++
	return m.nextSSA
}

// Emit allocates instr in the arena and appends it to block.
func (m *Module) Emit(block arena.Ref, instr Instruction) arena.Ref {
	ref := m.Instrs.Alloc(instr)
	m.Blocks.Get(block).Append(m.Instrs, ref, block)
	return ref
}

// EmitBefore allocates instr and inserts it immediately before at, within
// block.
func (m *Module) EmitBefore(block, at arena.Ref, instr Instruction) arena.Ref {
	ref := m.Instrs.Alloc(instr)
	m.Blocks.Get(block).InsertBefore(m.Instrs, ref, at, block)
	return ref
}

// Keep marks ref as a kept instruction (never DCE'd).
func (m *Module) Keep(ref arena.Ref) { m.Keeps[ref] = true }

// IsKept reports whether ref is kept, either explicitly or because it has a
// non-zero barrier class (spec.md §3.3: "removal occurs only when the count
// reaches zero and the value has no barrier class").
func (m *Module) IsKept(ref arena.Ref) bool {
	if m.Keeps[ref] {
		return true
	}
	instr := m.Instrs.Get(ref)
	return instr.BarrierClass != 0
}

// InternImmediate returns the const-file-pool index of v, allocating a new
// slot if this is the first occurrence (spec.md §3.1: "deduplicated 32-bit
// words").
func (m *Module) InternImmediate(v uint32) int {
	if idx, ok := m.immIndex[v]; ok {
		return idx
	}
	idx := len(m.Immediates)
	m.Immediates = append(m.Immediates, v)
	m.immIndex[v] = idx
	return idx
}

// AddUBORange records a new entry in the UBO upload plan.
func (m *Module) AddUBORange(r UBORange) {
	m.UBOUploads = append(m.UBOUploads, r)
}

// AddInput records a new input attribute binding.
func (m *Module) AddInput(a InputAttr) {
	m.Inputs = append(m.Inputs, a)
}

// AddOutput records a new output varying binding.
func (m *Module) AddOutput(o OutputVarying) {
	m.Outputs = append(m.Outputs, o)
}

// AddConstRegion records a reserved const-file extent.
func (m *Module) AddConstRegion(r ConstRegion) {
	m.ConstRegions = append(m.ConstRegions, r)
}

// NewArray allocates and registers a new array of the given length and
// element width (invariant 5: each array gets a distinct id).
func (m *Module) NewArray(length int, elemWidth Width) *Array {
	a := &Array{ID: uint32(len(m.Arrays) + 1), Length: length, ElemWidth: elemWidth}
	m.Arrays = append(m.Arrays, a)
	return a
}
