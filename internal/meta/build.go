package meta

import (
	"fmt"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/ir"
	"github.com/tiledgpu/ir3c/internal/pack"
)

const passName = "meta"

// Build assembles the per-variant descriptor for m, given the binary C9
// packed from it. m must be the same module bin was packed from: Build
// resolves input/output base registers by reading the post-regalloc
// physical register off each binding's defining instruction, and counts
// spills/fills/loops by walking m's blocks directly.
func Build(m *ir.Module, bin *pack.Binary) (*Descriptor, error) {
	inputs, err := buildInputs(m)
	if err != nil {
		return nil, err
	}
	outputs, err := buildOutputs(m)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Stage:        m.Stage,
		Generation:   bin.Generation.Name,
		Inputs:       inputs,
		Outputs:      outputs,
		ConstRegions: buildConstRegions(m),
		Stats:        buildStats(m, bin),
	}
	return d, nil
}

func buildInputs(m *ir.Module) ([]InputDescriptor, error) {
	out := make([]InputDescriptor, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		reg, err := definedRegister(m, "input", in.Name, in.Def)
		if err != nil {
			return nil, err
		}
		out = append(out, InputDescriptor{
			Name:          in.Name,
			BaseRegister:  reg.Num,
			ComponentMask: in.ComponentMask,
			Interp:        in.Interp,
			Barycentric:   in.Barycentric,
		})
	}
	return out, nil
}

func buildOutputs(m *ir.Module) ([]OutputDescriptor, error) {
	out := make([]OutputDescriptor, 0, len(m.Outputs))
	for _, o := range m.Outputs {
		reg, err := definedRegister(m, "output", o.Name, o.Def)
		if err != nil {
			return nil, err
		}
		out = append(out, OutputDescriptor{Name: o.Name, BaseRegister: reg.Num, Kind: o.Kind})
	}
	// spec.md §4.9: VS varyings are laid out position-first, user-second,
	// point-size-last. Other stages have no ordering requirement; the sort
	// below is a stable insertion sort, so same-kind outputs keep their
	// declaration order.
	sortByKind(out)
	return out, nil
}

func sortByKind(out []OutputDescriptor) {
	rank := func(k ir.OutputKind) int {
		switch k {
		case ir.OutputPosition:
			return 0
		case ir.OutputUser:
			return 1
		default: // ir.OutputPointSize
			return 2
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && rank(out[j-1].Kind) > rank(out[j].Kind); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
}

// definedRegister looks up the destination register of the instruction
// that defines a binding, failing loudly if the binding's Def points at
// nothing (a producer bug, not a condition this core should silently
// paper over) or at an instruction with no destination.
func definedRegister(m *ir.Module, kind, name string, def arena.Ref) (ir.Register, error) {
	if def == 0 {
		return ir.Register{}, errors.NewInvariantViolation(passName,
			fmt.Sprintf("%s binding %q has no defining instruction", kind, name))
	}
	instr := m.Instrs.Get(def)
	dst := instr.Dst()
	if dst == (ir.Register{}) {
		return ir.Register{}, errors.NewInvariantViolation(passName,
			fmt.Sprintf("%s binding %q's defining instruction has no destination", kind, name))
	}
	if !dst.IsPhys() {
		return ir.Register{}, errors.NewInvariantViolation(passName,
			fmt.Sprintf("%s binding %q resolved to a non-physical register; regalloc must run before metadata is built", kind, name))
	}
	return dst, nil
}

func buildConstRegions(m *ir.Module) []ConstRegionDescriptor {
	var regions []ConstRegionDescriptor
	if m.DriverParams.Count > 0 {
		regions = append(regions, ConstRegionDescriptor{
			Name:  "driver-params",
			Base:  m.DriverParams.Base / 4,
			Count: (m.DriverParams.Count + 3) / 4,
		})
	}
	for _, u := range m.UBOUploads {
		regions = append(regions, ConstRegionDescriptor{
			Name: fmt.Sprintf("ubo[%d]", u.UBO),
			Base: u.ConstOff / 4,
			// u.Start/u.End are a byte range; a vec4 is 16 bytes.
			Count: (u.End - u.Start + 15) / 16,
		})
	}
	for _, r := range m.ConstRegions {
		regions = append(regions, ConstRegionDescriptor{Name: constRegionName(r.Kind), Base: r.Base, Count: r.Count})
	}
	if len(m.Immediates) > 0 {
		// internal/ir.Module.Immediates is documented as landing "in the
		// first vec4 slots of the const file".
		regions = append(regions, ConstRegionDescriptor{
			Name:  "immediates",
			Base:  0,
			Count: uint32((len(m.Immediates) + 3) / 4),
		})
	}
	return regions
}

func constRegionName(k ir.ConstRegionKind) string {
	switch k {
	case ir.ConstRegionSSBOSize:
		return "ssbo-size"
	case ir.ConstRegionImageDims:
		return "image-dims"
	case ir.ConstRegionTFBO:
		return "tfbo"
	default:
		return "const-region"
	}
}

// buildStats derives spec.md §4.9's per-variant statistics: instruction
// count comes straight from the packed binary (it already excludes
// resolved OpMeta markers), spill/fill counts and loop count come from
// walking m's blocks, and register-file pressure comes from the highest
// half-slot any physical operand occupies — internal/regalloc/color.go's
// colorGraph treats a non-16-bit value as occupying its slot and the next
// one in the unified half/full file, which is the same rule applied here
// in reverse to recover peak usage from the final assignment.
func buildStats(m *ir.Module, bin *pack.Binary) Stats {
	s := Stats{InstructionCount: bin.InstrCount}
	peakHalfSlot := 0
	for _, bref := range m.BlockOrder {
		blk := m.Blocks.Get(bref)
		if blk.Succs[0] == bref {
			s.LoopCount++
		}
		blk.Instrs(m.Instrs, func(_ arena.Ref, instr *ir.Instruction) bool {
			switch instr.Op {
			case ir.OpSpill:
				s.SpillCount++
			case ir.OpFill:
				s.FillCount++
			}
			for _, r := range instr.Dsts {
				if e := slotEnd(r); e > peakHalfSlot {
					peakHalfSlot = e
				}
			}
			for _, r := range instr.Srcs {
				if e := slotEnd(r); e > peakHalfSlot {
					peakHalfSlot = e
				}
			}
			return true
		})
	}
	s.HalfRegsUsed = peakHalfSlot
	s.FullRegsUsed = (peakHalfSlot + 1) / 2
	return s
}

func slotEnd(r ir.Register) int {
	if !r.IsPhys() {
		return 0
	}
	if r.Width == ir.Width16 {
		return int(r.Num) + 1
	}
	return int(r.Num) + 2
}
