// Package compiler wires the C2-C10 passes of spec.md §2 into the single
// linear pipeline an embedding driver calls through: HIR in, packed binary
// and metadata out. It owns the only two pieces of process-wide mutable
// state spec.md §5 allows (the monotonic shader-id counter and the
// debug-flag mask) behind a CompilerContext, and fans independent
// compilations out across goroutines in CompileBatch.
//
// Grounded on the teacher's cmd/sentra/main.go command-dispatch shape
// (parse options once, dispatch to the right subsystem, surface a single
// tagged error at the top) generalized from a CLI's command table to the
// compiler's fixed pass sequence, which needs no dispatch table at all —
// every compile runs the same nine stages in the same order.
package compiler

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tiledgpu/ir3c/internal/cflow"
	"github.com/tiledgpu/ir3c/internal/copyprop"
	ir3err "github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/inspector"
	"github.com/tiledgpu/ir3c/internal/ir"
	"github.com/tiledgpu/ir3c/internal/lower"
	"github.com/tiledgpu/ir3c/internal/meta"
	"github.com/tiledgpu/ir3c/internal/pack"
	"github.com/tiledgpu/ir3c/internal/postsched"
	"github.com/tiledgpu/ir3c/internal/presched"
	"github.com/tiledgpu/ir3c/internal/regalloc"
	"github.com/tiledgpu/ir3c/internal/shaderdb"
	"github.com/tiledgpu/ir3c/internal/ssaopt"
)

// DebugFlag is one bit of the process-wide debug mask spec.md §5 names
// ("a debug-flag mask parsed once at process start from an environment
// variable"). Parsed from IR3C_DEBUG, a comma-separated list of names.
type DebugFlag uint32

const (
	DebugDumpIR DebugFlag = 1 << iota
	DebugTraceSchedule
	DebugTraceRegalloc
)

var debugNames = map[string]DebugFlag{
	"ir":       DebugDumpIR,
	"schedule": DebugTraceSchedule,
	"regalloc": DebugTraceRegalloc,
}

func parseDebugMask() DebugFlag {
	var mask DebugFlag
	raw := os.Getenv("IR3C_DEBUG")
	if raw == "" {
		return 0
	}
	for _, name := range strings.Split(raw, ",") {
		if f, ok := debugNames[strings.TrimSpace(name)]; ok {
			mask |= f
		}
	}
	return mask
}

// Options mirrors spec.md §6.3's recognized driver options exactly.
type Options struct {
	NoOptimize    bool // skip C3 and C7; keep lowering/scheduling/RA only
	NoValidate    bool // skip invariant checks between passes
	Shaderdb      bool // emit per-variant statistics to the metadata stream
	VerboseDisasm bool // emit a human-readable disassembly alongside the binary
	Internal      bool // also process internally-generated shaders (blit, clear)
}

// names returns the set of enabled option names, for meta.VariantKey's
// cache-key hash (SPEC_FULL.md §D.3).
func (o Options) names() []string {
	var names []string
	if o.NoOptimize {
		names = append(names, "no-optimize")
	}
	if o.NoValidate {
		names = append(names, "no-validate")
	}
	if o.Shaderdb {
		names = append(names, "shaderdb")
	}
	if o.VerboseDisasm {
		names = append(names, "verbose-disasm")
	}
	if o.Internal {
		names = append(names, "internal")
	}
	return names
}

// Result is everything a single compile produces (spec.md §6.2): the
// packed binary, the metadata descriptor, and — only when VerboseDisasm is
// set — the disassembly text.
type Result struct {
	Binary     *pack.Binary
	Descriptor *meta.Descriptor
	Disasm     []string
}

// Context is the per-thread compilation context spec.md §5 describes:
// "the context holds no cross-shader mutable state besides the
// shader-count counter, which is updated atomically at the beginning of
// each compilation." One Context may run CompileBatch concurrently; a
// single Context.Compile call is not reentrant with itself on the same
// *ir.Module (spec.md §1 non-goals: "reentrancy of a single compilation
// context").
type Context struct {
	ID    uuid.UUID
	Debug DebugFlag

	shaderCount atomic.Uint64

	// Inspector is the optional verbose-disasm broadcast hub (spec.md §6.3,
	// expansion). Nil unless the caller opts into live inspection; Compile
	// tolerates a nil Inspector the same way inspector.StreamDisassembly
	// tolerates a nil *inspector.Hub.
	Inspector *inspector.Hub

	// ShaderDB accumulates per-variant records across every Compile call
	// made through this Context when opts.Shaderdb is set (expansion: the
	// `shaderdb` option of spec.md §6.3 "emits per-variant statistics to
	// the metadata stream" — this Context is that stream's sink).
	ShaderDB *shaderdb.DB
}

// NewContext creates a Context with a fresh identity and the debug mask
// parsed once from the environment, per spec.md §5's "global mutable state
// is limited to... a debug-flag mask parsed once at process start".
func NewContext() *Context {
	return &Context{
		ID:       uuid.New(),
		Debug:    parseDebugMask(),
		ShaderDB: shaderdb.New(),
	}
}

// nextShaderID atomically reserves the next shader ordinal for this
// context, combined with the context's own identity so IDs stay unique
// across independently-created Contexts too (two Contexts compiling
// concurrently in the same process never collide).
func (c *Context) nextShaderID() string {
	n := c.shaderCount.Add(1)
	return uuid.NewSHA1(c.ID, []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}).String()
}

// Compile runs the full C2-C10 pipeline over m for generation g, in the
// order spec.md §2's data-flow row specifies: C2, C3, C2 (second round),
// C3, C4, C5, C6, C7, C8, then C9+C10. Internal isn't itself a pass gate
// here — spec.md §6.3 describes it as a *caller-side* filter over which
// shaders reach Compile at all (blit/clear shaders vs. application
// shaders), so an embedding driver consults opts.Internal before ever
// calling Compile, not Compile itself.
func (c *Context) Compile(m *ir.Module, g gen.Generation, opts Options) (*Result, error) {
	shaderID := c.nextShaderID()

	key := meta.VariantKey(meta.KeyInputs{Generation: g.Name, Options: opts.names()}, m)

	if err := c.runLoweringRound(m, g, opts); err != nil {
		return nil, err
	}
	if err := ssaopt.Run(m, g, ssaopt.Options{NoOptimize: opts.NoOptimize}); err != nil {
		return nil, err
	}
	if err := c.runLoweringRound(m, g, opts); err != nil {
		return nil, err
	}
	if err := ssaopt.Run(m, g, ssaopt.Options{NoOptimize: opts.NoOptimize}); err != nil {
		return nil, err
	}

	if err := cflow.Run(m, cflow.Options{NoValidate: opts.NoValidate}); err != nil {
		return nil, err
	}
	if err := presched.Run(m, g, presched.Options{}); err != nil {
		return nil, err
	}
	if err := regalloc.Run(m, g, regalloc.Options{}); err != nil {
		return nil, err
	}
	if !opts.NoOptimize {
		if err := postsched.Run(m, g, postsched.Options{}); err != nil {
			return nil, err
		}
	}
	if err := copyprop.Run(m, copyprop.Options{}); err != nil {
		return nil, err
	}

	bin, err := pack.Pack(m, g, pack.Options{})
	if err != nil {
		return nil, err
	}
	if bin.InstrCount > g.MaxInstrCount {
		return nil, ir3err.NewResourceExhausted("pack",
			"binary instruction count exceeds generation cap (invariant 9)")
	}

	desc, err := meta.Build(m, bin)
	if err != nil {
		return nil, err
	}
	desc.Key = key
	desc.VariantID = shaderID

	res := &Result{Binary: bin, Descriptor: desc}
	if opts.VerboseDisasm {
		lines, err := inspector.StreamDisassembly(c.Inspector, shaderID, bin)
		if err != nil {
			return nil, err
		}
		res.Disasm = lines
	}
	if opts.Shaderdb && c.ShaderDB != nil {
		c.ShaderDB.Add(shaderID, desc, len(bin.Code), time.Now())
	}
	return res, nil
}

// runLoweringRound performs one C2 round: UBO constant-promotion analysis
// (spec.md §4.1 item 9) followed by the rest of the HIR-lowering rewrites.
// Running PromoteUBOs ahead of lower.Run on both the first and second
// round matters because the second round's predecessor (C3) may have
// constant-folded a UBO index or offset that was dynamic on the first
// pass, exposing a newly-statically-addressed load to promote.
func (c *Context) runLoweringRound(m *ir.Module, g gen.Generation, opts Options) error {
	driverParamScalars := int(m.DriverParams.Count)
	streamOutScalars := 0
	for _, r := range m.ConstRegions {
		if r.Kind == ir.ConstRegionTFBO {
			streamOutScalars += int(r.Count) * 4
		}
	}
	if err := lower.PromoteUBOs(m, g, driverParamScalars, streamOutScalars); err != nil {
		return err
	}
	return lower.Run(m, g, lower.Options{NoValidate: opts.NoValidate})
}
