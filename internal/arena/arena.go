// Package arena implements the bump-allocated, compilation-scoped allocator
// described in spec.md §3.3 and §9 ("cyclic IR graphs → arena + indices").
//
// No single teacher file models a bump allocator (internal/memory in the
// teacher repo was a process-forensics mock with no reusable semantics — see
// DESIGN.md), so this is written fresh in the plain-struct-with-slice-backing
// idiom the teacher uses throughout internal/bytecode and internal/compiler:
// a small struct wrapping growable slices, indices instead of pointers.
package arena

// Arena owns the slice-backed storage for every IR node allocated during one
// compilation. Nodes are referenced by index (Ref), never by pointer, so
// back-edges (phi operands across a loop header, a block's predecessor list)
// are just integers that remain valid across slice growth.
//
// The arena itself has no notion of what it stores; internal/ir layers
// typed, index-based storage on top (Blocks, Instructions, Registers) each
// backed by one generic Pool.
type Arena struct {
	generation uint64
}

// New returns a fresh Arena scoped to a single compilation.
func New() *Arena {
	return &Arena{}
}

// Ref is an opaque index into a Pool. The zero Ref never denotes a valid
// element; Pool.Alloc never returns it.
type Ref uint32

const invalidRef Ref = 0

// Pool is a typed, append-only arena region for values of type T. Elements
// are never freed individually (per §3.3: "freed only when the arena is
// destroyed"); removal from a logical structure (e.g. a block's instruction
// list) is a separate, structural operation layered on top and does not
// reclaim Pool storage.
type Pool[T any] struct {
	items []T // items[0] is a sentinel so Ref(0) stays invalid
}

// NewPool returns an empty Pool with its sentinel slot reserved.
func NewPool[T any]() *Pool[T] {
	var zero T
	return &Pool[T]{items: []T{zero}}
}

// Alloc appends v and returns its Ref.
func (p *Pool[T]) Alloc(v T) Ref {
	p.items = append(p.items, v)
	return Ref(len(p.items) - 1)
}

// Get returns a pointer to the element at ref, valid until the next Alloc
// (slice growth may relocate backing storage; callers that must hold a
// stable address across allocation should re-fetch via Get rather than
// caching the pointer).
func (p *Pool[T]) Get(ref Ref) *T {
	return &p.items[ref]
}

// Len returns the number of allocated (non-sentinel) elements.
func (p *Pool[T]) Len() int {
	return len(p.items) - 1
}

// All iterates every allocated Ref in allocation order.
func (p *Pool[T]) All(yield func(Ref, *T) bool) {
	for i := 1; i < len(p.items); i++ {
		if !yield(Ref(i), &p.items[i]) {
			return
		}
	}
}

// Valid reports whether ref denotes an allocated element.
func (p *Pool[T]) Valid(ref Ref) bool {
	return ref != invalidRef && int(ref) < len(p.items)
}
