package regalloc

import (
	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// spillValues rewrites every value named in spills to live in a spill slot
// instead of a register: a store (OpSpill) right after its def, and a
// fresh-SSA load (OpFill) immediately before each use, with that use
// rewritten to read the load's result. The spilled value's own SSA number
// doubles as its slot id — SSA numbers are already unique for the module's
// lifetime, so no separate slot allocator is needed.
//
// This shrinks every spilled value's live range to a single instruction
// (def to its store, or load to its one use), which is why the bounded
// retry loop in Run converges: a value colorGraph could not fit reappears
// next round as several near-zero-degree values instead of one
// high-degree one.
func spillValues(m *ir.Module, spills []uint32) {
	spillSet := map[uint32]bool{}
	for _, v := range spills {
		spillSet[v] = true
	}

	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		var instrs []arena.Ref
		b.Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
			instrs = append(instrs, ref)
			return true
		})
		for _, ref := range instrs {
			instr := m.Instrs.Get(ref)
			for _, dst := range instr.Dsts {
				if dst.IsSSA() && spillSet[dst.Num] {
					insertAfter(m, bref, ref, ir.Instruction{
						Op:   ir.OpSpill,
						Srcs: []ir.Register{dst, ir.ImmUintReg(dst.Num, ir.Width32)},
					})
				}
			}
		}
	}

	for _, bref := range m.BlockOrder {
		b := m.Blocks.Get(bref)
		var instrs []arena.Ref
		b.Instrs(m.Instrs, func(ref arena.Ref, _ *ir.Instruction) bool {
			instrs = append(instrs, ref)
			return true
		})
		for _, ref := range instrs {
			instr := m.Instrs.Get(ref)
			if instr.Op == ir.OpSpill {
				continue
			}
			replacement := map[uint32]ir.Register{}
			for i, src := range instr.Srcs {
				if !src.IsSSA() || !spillSet[src.Num] {
					continue
				}
				fresh, ok := replacement[src.Num]
				if !ok {
					fresh = ir.SSAReg(m.AllocSSA(), src.Width)
					fresh.Mods = src.Mods
					m.EmitBefore(bref, ref, ir.Instruction{
						Op:   ir.OpFill,
						Dsts: []ir.Register{fresh},
						Srcs: []ir.Register{ir.ImmUintReg(src.Num, ir.Width32)},
					})
					replacement[src.Num] = fresh
				}
				instr.Srcs[i] = fresh
			}
		}
	}
}

// insertAfter allocates instr and splices it immediately after an existing
// instruction. internal/ir.Module only exposes EmitBefore; this is its
// mirror for the one caller (the spill store) that needs "right after a
// def" rather than "right before a use".
func insertAfter(m *ir.Module, bref, after arena.Ref, instr ir.Instruction) arena.Ref {
	b := m.Blocks.Get(bref)
	ref := m.Instrs.Alloc(instr)
	afterInstr := m.Instrs.Get(after)
	if next := afterInstr.Next; next != 0 {
		b.InsertBefore(m.Instrs, ref, next, bref)
	} else {
		b.Append(m.Instrs, ref, bref)
	}
	return ref
}
