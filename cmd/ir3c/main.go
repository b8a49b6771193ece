// cmd/ir3c is a driver-facing smoke-test CLI for the backend compiler
// core. It is not a shader-language front end (spec.md §1 keeps source
// ingestion out of scope): every subcommand builds one of the fixed HIR
// fixtures named in spec.md §8 directly with internal/ir, the same way an
// embedding driver would after its own SPIR-V/GLSL parser has run.
//
// Grounded on the teacher's cmd/sentra/main.go: manual os.Args dispatch
// over a small command set, log.Fatalf on the error path, no flags
// library — the teacher's own CLI does not reach for one either.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kr/pretty"

	"github.com/tiledgpu/ir3c/internal/arena"
	"github.com/tiledgpu/ir3c/internal/compiler"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("ir3c %s\n", version)
	case "smoke":
		runSmoke(args[1:])
	case "batch":
		runBatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`ir3c - tiled-GPU shader backend compiler core (smoke-test driver)

Usage:
  ir3c smoke [fixture] [generation]   compile one built-in HIR fixture and print its metadata
  ir3c batch [generation]             compile every built-in fixture through CompileBatch
  ir3c version                        print the CLI version
  ir3c help                           show this message

Fixtures: const-divide, if-else, ubo-range
Generations: a6xx (default), a7xx`)
}

func resolveGeneration(name string) gen.Generation {
	if name == "" {
		return gen.A6XX
	}
	g, ok := gen.ByName(name)
	if !ok {
		log.Fatalf("unknown generation %q", name)
	}
	return g
}

func runSmoke(args []string) {
	fixtureName := "const-divide"
	if len(args) > 0 {
		fixtureName = args[0]
	}
	genName := ""
	if len(args) > 1 {
		genName = args[1]
	}

	fixture, ok := fixtures[fixtureName]
	if !ok {
		log.Fatalf("unknown fixture %q (want one of const-divide, if-else, ubo-range)", fixtureName)
	}
	g := resolveGeneration(genName)

	ctx := compiler.NewContext()
	res, err := ctx.Compile(fixture(), g, compiler.Options{VerboseDisasm: true, Shaderdb: true})
	if err != nil {
		log.Fatalf("compile failed: %v", err)
	}

	fmt.Printf("compiled %q for %s: %d bytes, %d instructions\n",
		fixtureName, g.Name, len(res.Binary.Code), res.Binary.InstrCount)
	fmt.Printf("%# v\n", pretty.Formatter(res.Descriptor))
	fmt.Println("--- disassembly ---")
	for _, line := range res.Disasm {
		fmt.Println(line)
	}
}

func runBatch(args []string) {
	genName := ""
	if len(args) > 0 {
		genName = args[0]
	}
	g := resolveGeneration(genName)

	var jobs []compiler.Job
	for name, build := range fixtures {
		jobs = append(jobs, compiler.Job{Name: name, Module: build(), Generation: g})
	}

	ctx := compiler.NewContext()
	results, err := ctx.CompileBatch(context.Background(), jobs)
	if err != nil {
		log.Fatalf("batch compile failed: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: FAILED: %v\n", r.Name, r.Err)
			continue
		}
		fmt.Printf("%s: %d bytes, %d instructions\n", r.Name, len(r.Result.Binary.Code), r.Result.Binary.InstrCount)
	}
}

// fixtures maps a fixture name to a builder producing a fresh *ir.Module
// each time (Modules are single-use: a compile mutates its module in
// place, per spec.md §1's "reentrancy of a single compilation context" non-goal).
var fixtures = map[string]func() *ir.Module{
	"const-divide": buildConstDivideFixture,
	"if-else":      buildIfElseFixture,
	"ubo-range":    buildUBORangeFixture,
}

// buildConstDivideFixture is spec.md §8 Scenario A: fn(x: u32) -> u32 {
// return x / 3 }.
func buildConstDivideFixture() *ir.Module {
	m := ir.NewModule(ir.StageCompute)
	b := m.NewBlock()
	x := ir.SSAReg(m.AllocSSA(), ir.Width32)
	dst := ir.SSAReg(m.AllocSSA(), ir.Width32)
	ref := m.Emit(b, ir.Instruction{
		Op:   ir.OpHIRUDiv,
		Dsts: []ir.Register{dst},
		Srcs: []ir.Register{x, ir.ImmUintReg(3, ir.Width32)},
	})
	m.AddOutput(ir.OutputVarying{Name: "result", Def: ref, Kind: ir.OutputUser})
	return m
}

// buildIfElseFixture is spec.md §8 Scenario B: fn(c, a, b) -> u32 {
// return if c { a+1 } else { b+2 } }, built as a header/then/else/join
// diamond the same way internal/cflow's own tests construct one.
func buildIfElseFixture() *ir.Module {
	m := ir.NewModule(ir.StageFragment)
	h := m.NewBlock()
	then := m.NewBlock()
	els := m.NewBlock()
	join := m.NewBlock()

	cond := ir.SSAReg(m.AllocSSA(), ir.Width16)
	a := ir.SSAReg(m.AllocSSA(), ir.Width32)
	b := ir.SSAReg(m.AllocSSA(), ir.Width32)
	condRef := m.Emit(h, ir.Instruction{Op: ir.OpCmpNE, Dsts: []ir.Register{cond}, Srcs: []ir.Register{
		ir.SSAReg(m.AllocSSA(), ir.Width32), ir.ImmUintReg(0, ir.Width32),
	}})
	m.Blocks.Get(h).Condition = condRef
	m.Blocks.Get(h).AddSucc(then)
	m.Blocks.Get(h).AddSucc(els)

	thenVal := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(then, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{thenVal}, Srcs: []ir.Register{a, ir.ImmUintReg(1, ir.Width32)}})
	m.Blocks.Get(then).Preds = []arena.Ref{h}
	m.Blocks.Get(then).AddSucc(join)

	elseVal := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(els, ir.Instruction{Op: ir.OpAdd, Dsts: []ir.Register{elseVal}, Srcs: []ir.Register{b, ir.ImmUintReg(2, ir.Width32)}})
	m.Blocks.Get(els).Preds = []arena.Ref{h}
	m.Blocks.Get(els).AddSucc(join)

	result := ir.SSAReg(m.AllocSSA(), ir.Width32)
	m.Emit(join, ir.Instruction{
		Op:   ir.OpPhi,
		Dsts: []ir.Register{result},
		Srcs: []ir.Register{thenVal, elseVal},
	})
	m.Blocks.Get(join).Preds = []arena.Ref{then, els}

	// ifConvert collapses the join phi itself into a zero-destination
	// OpMeta marker once C4 runs (its value lives on through the
	// parallel-copy pair it leaves behind instead), so the output binding
	// points at a trailing identity mov rather than the phi's own ref.
	final := ir.SSAReg(m.AllocSSA(), ir.Width32)
	ref := m.Emit(join, ir.Instruction{Op: ir.OpMov, Dsts: []ir.Register{final}, Srcs: []ir.Register{result}})

	m.AddOutput(ir.OutputVarying{Name: "fragColor", Def: ref, Kind: ir.OutputUser})
	return m
}

// buildUBORangeFixture is spec.md §8 Scenario C: three constant-index UBO
// loads at byte offsets 16, 32, 48, each a 4-component vec.
func buildUBORangeFixture() *ir.Module {
	m := ir.NewModule(ir.StageFragment)
	b := m.NewBlock()

	for i, off := range []uint32{16, 32, 48} {
		dst := ir.SSAReg(m.AllocSSA(), ir.Width32)
		ref := m.Emit(b, ir.Instruction{
			Op:   ir.OpHIRUBOLoad,
			Dsts: []ir.Register{dst},
			Srcs: []ir.Register{ir.ImmUintReg(0, ir.Width32), ir.ImmUintReg(off, ir.Width32), ir.ImmUintReg(16, ir.Width32)},
		})
		if i == 2 {
			m.AddOutput(ir.OutputVarying{Name: "fragColor", Def: ref, Kind: ir.OutputUser})
		}
	}
	return m
}
