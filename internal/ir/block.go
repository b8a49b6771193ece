package ir

import "github.com/tiledgpu/ir3c/internal/arena"

// Block owns a doubly-linked list of instructions (spec.md §3.1). The list
// is threaded through Instruction.Prev/Next so it lives in the same arena
// pool as the instructions themselves — no separate container allocation.
type Block struct {
	head, tail arena.Ref // first/last instruction, 0 if empty

	Succs             [2]arena.Ref // up to two successor blocks
	Preds             []arena.Ref
	UnconditionalJump bool      // inhibits further successor appends
	Condition         arena.Ref // instruction whose result drives the terminator

	// Index is the block's position in the module's block list, assigned at
	// creation and renumbered by passes that remove or prepend blocks
	// (internal/cflow, internal/ssaopt); used as a cheap
	// dominance/ordering proxy by passes that only need "earlier in program
	// order", not full dominance.
	Index int
}

// Instrs iterates the block's instructions head-to-tail using the snapshot
// semantics required by spec.md §5: "a snapshot cursor that is robust
// against removal of the current instruction but not against insertion of
// earlier instructions." It captures Next before invoking yield so the
// callback may freely remove the current instruction.
func (b *Block) Instrs(pool *arena.Pool[Instruction], yield func(arena.Ref, *Instruction) bool) {
	cur := b.head
	for cur != 0 {
		instr := pool.Get(cur)
		next := instr.Next
		if !yield(cur, instr) {
			return
		}
		cur = next
	}
}

// Append adds ref to the tail of b's instruction list.
func (b *Block) Append(pool *arena.Pool[Instruction], ref arena.Ref, blockRef arena.Ref) {
	instr := pool.Get(ref)
	instr.Block = blockRef
	instr.Prev = b.tail
	instr.Next = 0
	if b.tail != 0 {
		pool.Get(b.tail).Next = ref
	} else {
		b.head = ref
	}
	b.tail = ref
}

// InsertBefore inserts ref immediately before at in b's instruction list.
func (b *Block) InsertBefore(pool *arena.Pool[Instruction], ref, at, blockRef arena.Ref) {
	atInstr := pool.Get(at)
	instr := pool.Get(ref)
	instr.Block = blockRef
	instr.Prev = atInstr.Prev
	instr.Next = at
	if atInstr.Prev != 0 {
		pool.Get(atInstr.Prev).Next = ref
	} else {
		b.head = ref
	}
	atInstr.Prev = ref
}

// Remove detaches ref from b's instruction list. Per spec.md §3.3 this is
// idempotent and does not free the underlying arena storage; ref simply
// stops being reachable from b.Instrs.
func (b *Block) Remove(pool *arena.Pool[Instruction], ref arena.Ref) {
	instr := pool.Get(ref)
	if instr.Prev != 0 {
		pool.Get(instr.Prev).Next = instr.Next
	} else if b.head == ref {
		b.head = instr.Next
	}
	if instr.Next != 0 {
		pool.Get(instr.Next).Prev = instr.Prev
	} else if b.tail == ref {
		b.tail = instr.Prev
	}
	instr.Prev, instr.Next = 0, 0
}

// Head, Tail expose the current list boundaries (0 if the block is empty).
func (b *Block) Head() arena.Ref { return b.head }
func (b *Block) Tail() arena.Ref { return b.tail }

// AddSucc appends succ as a successor, honoring UnconditionalJump (spec.md
// §3.1: "a flag unconditional_jump that inhibits further successor
// appends").
func (b *Block) AddSucc(succ arena.Ref) {
	if b.UnconditionalJump {
		return
	}
	if b.Succs[0] == 0 {
		b.Succs[0] = succ
	} else if b.Succs[1] == 0 {
		b.Succs[1] = succ
	}
}
