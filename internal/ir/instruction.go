package ir

import "github.com/tiledgpu/ir3c/internal/arena"

// Flag is a bitmask of per-instruction flags (spec.md §3.1).
type Flag uint16

const (
	FlagSat       Flag = 1 << iota // saturate result to [0,1]
	FlagEndInput                  // marks the final instruction consuming a given input
	FlagSyncSS                    // (ss): stall for a recent SFU producer
	FlagSyncSY                    // (sy): stall for a recent texture/memory producer
	FlagKill                      // shader-kill / discard
	FlagPredWrite                 // result also feeds the predicate register
)

// BarrierClass is the bitmask of memory classes an instruction touches
// (spec.md §5).
type BarrierClass uint16

const (
	BarrierSharedR BarrierClass = 1 << iota
	BarrierSharedW
	BarrierImageR
	BarrierImageW
	BarrierBufferR
	BarrierBufferW
	BarrierArrayR
	BarrierArrayW
	BarrierActiveFragment
	BarrierEverything
)

// Instruction is the atomic LIR unit (spec.md §3.1).
type Instruction struct {
	Op       Op
	Dsts     []Register
	Srcs     []Register
	Repeat   uint8 // 0..3: executes repeat+1 times over successive registers
	Flags    Flag
	Address  arena.Ref // back-pointer to the instruction feeding the address register, if any
	BarrierClass    BarrierClass
	BarrierConflict BarrierClass
	UseCount int
	Deps     []arena.Ref // false-dependency pointers

	// Block membership and intrusive doubly-linked list, maintained by
	// Block's Append/InsertBefore/Remove.
	Block arena.Ref
	Prev  arena.Ref
	Next  arena.Ref

	// ArrayAccess, when non-zero, names the Array this instruction reads or
	// writes for the purposes of the "last write" ordering pointer in §3.1.
	ArrayAccess uint32
}

// Dst returns the first (and for nearly every opcode, only) destination, or
// the zero Register if the instruction has none.
func (i *Instruction) Dst() Register {
	if len(i.Dsts) == 0 {
		return Register{}
	}
	return i.Dsts[0]
}

// HasFlag reports whether f is set.
func (i *Instruction) HasFlag(f Flag) bool { return i.Flags&f != 0 }

// SetFlag sets f.
func (i *Instruction) SetFlag(f Flag) { i.Flags |= f }

// ClearFlag clears f.
func (i *Instruction) ClearFlag(f Flag) { i.Flags &^= f }

// ConflictsWith reports whether other must not be reordered past i, per the
// barrier-class rule in spec.md §5: "the scheduler adds an edge from A to B
// iff (A.barrier_class & B.barrier_conflict) != 0", refined so that two
// array accesses to distinct non-zero array ids never alias (invariant 5).
func (i *Instruction) ConflictsWith(other *Instruction) bool {
	if i.ArrayAccess != 0 && other.ArrayAccess != 0 && i.ArrayAccess != other.ArrayAccess {
		return false
	}
	return i.BarrierClass&other.BarrierConflict != 0
}
