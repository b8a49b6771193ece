package regalloc

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// igraph is the interference graph: one node per SSA value, undirected
// edges between values simultaneously live. Stored as sorted adjacency
// lists (spec.md §9's "small-vector idiom") rather than a bitset, since the
// degree of a typical shader value is small relative to the value count.
type igraph struct {
	width map[uint32]ir.Width
	half  map[uint32]bool // true if this value only ever appears at half precision
	adj   map[uint32]map[uint32]bool
	order []uint32 // all SSA nums, ascending, for deterministic iteration
}

func newIGraph() *igraph {
	return &igraph{
		width: map[uint32]ir.Width{},
		half:  map[uint32]bool{},
		adj:   map[uint32]map[uint32]bool{},
	}
}

func (g *igraph) addNode(v uint32, w ir.Width) {
	if _, ok := g.adj[v]; !ok {
		g.adj[v] = map[uint32]bool{}
		g.width[v] = w
		g.half[v] = w == ir.Width16
		g.order = append(g.order, v)
	}
}

func (g *igraph) addEdge(a, b uint32) {
	if a == b {
		return
	}
	g.addNode(a, ir.Width32)
	g.addNode(b, ir.Width32)
	g.adj[a][b] = true
	g.adj[b][a] = true
}

func (g *igraph) neighbors(v uint32) []uint32 {
	out := maps.Keys(g.adj[v])
	slices.Sort(out)
	return out
}

func (g *igraph) degree(v uint32) int { return len(g.adj[v]) }

func (g *igraph) sortedNodes() []uint32 {
	out := append([]uint32(nil), g.order...)
	slices.Sort(out)
	return out
}

// buildInterference walks every block backward from its liveOut set, per
// the classical "def interferes with everything live across it" rule,
// adding a clique among the values alive at each instruction boundary.
// This is grounded on the same backward-walk shape as internal/ssaopt's
// liveness-driven DCE pass, generalized from "is this value used again" to
// "what else is live at the same time".
func buildInterference(m *ir.Module, lv *liveness) *igraph {
	g := newIGraph()

	widthOf := map[uint32]ir.Width{}
	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		b.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			for _, dst := range instr.Dsts {
				if dst.IsSSA() {
					widthOf[dst.Num] = dst.Width
				}
			}
			return true
		})
	}

	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		live := map[uint32]bool{}
		for v := range lv.liveOut[bref] {
			live[v] = true
			g.addNode(v, widthOf[v])
		}

		var instrs []arena.Ref
		b.Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
			instrs = append(instrs, ref)
			return true
		})

		for i := len(instrs) - 1; i >= 0; i-- {
			instr := m.Instrs.Get(instrs[i])
			for _, dst := range instr.Dsts {
				if !dst.IsSSA() {
					continue
				}
				g.addNode(dst.Num, dst.Width)
				for other := range live {
					if other != dst.Num {
						g.addEdge(dst.Num, other)
					}
				}
				delete(live, dst.Num)
			}
			for _, src := range instr.Srcs {
				if src.IsSSA() {
					g.addNode(src.Num, widthOf[src.Num])
					live[src.Num] = true
				}
			}
		}
	}
	return g
}
