package regalloc

import (
	"sort"

	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// coloring is the result of one allocation attempt: a half-slot assignment
// per SSA value, or a list of values that could not be colored and must be
// spilled before the next attempt.
type coloring struct {
	color  map[uint32]int
	spills []uint32
}

// colorGraph implements a greedy, most-constrained-first coloring over the
// unified half/full register file both shipped Generations use
// (gen.Generation.MergedRegs): a 32-bit value occupies an even half-slot
// and its successor (the pair aliasing one physical full register); a
// 16-bit value occupies a single half-slot. This is a simplified
// alternative to Chaitin/Briggs optimistic coloring (no simplify/select
// stack, no coalescing beyond the tied-operand forcing below) — adequate
// here because spillValues always shrinks the live range of anything this
// pass fails to color, so the bounded spill-retry loop in Run converges in
// practice without needing the stack-based proof of progress Briggs gives.
func colorGraph(g *igraph, generation gen.Generation, reserved map[int]bool, tied map[uint32]uint32) *coloring {
	c := &coloring{color: map[uint32]int{}}
	slots := generation.HalfRegCount

	order := g.sortedNodes()
	sort.SliceStable(order, func(i, j int) bool {
		return g.degree(order[i]) > g.degree(order[j])
	})

	occupied := func(v uint32, col int) bool {
		if col < 0 || col >= slots || reserved[col] {
			return true
		}
		if g.width[v] != ir.Width16 && (col+1 >= slots || reserved[col+1]) {
			return true
		}
		return false
	}

	forbiddenBy := func(v uint32) map[int]bool {
		forbidden := map[int]bool{}
		for n := range reserved {
			forbidden[n] = true
		}
		for _, nb := range g.neighbors(v) {
			col, ok := c.color[nb]
			if !ok {
				continue
			}
			forbidden[col] = true
			if g.width[nb] != ir.Width16 {
				forbidden[col+1] = true
				forbidden[col-1] = true
			} else {
				forbidden[col-1] = true
			}
		}
		return forbidden
	}

	findColor := func(v uint32, forbidden map[int]bool) (int, bool) {
		step := 1
		if g.width[v] != ir.Width16 {
			step = 2
		}
		for col := 0; col < slots; col += step {
			if forbidden[col] {
				continue
			}
			if !occupied(v, col) {
				return col, true
			}
		}
		return 0, false
	}

	colored := map[uint32]bool{}
	for _, v := range order {
		if colored[v] {
			continue
		}
		forbidden := forbiddenBy(v)
		partner, hasPartner := tied[v]
		col, ok := findColor(v, forbidden)
		if !ok {
			c.spills = append(c.spills, v)
			continue
		}
		if hasPartner && !colored[partner] {
			partnerForbidden := forbiddenBy(partner)
			if occupied(partner, col) || partnerForbidden[col] {
				c.spills = append(c.spills, v, partner)
				continue
			}
			c.color[partner] = col
			colored[partner] = true
		}
		c.color[v] = col
		colored[v] = true
	}
	return c
}
