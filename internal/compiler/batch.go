package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tiledgpu/ir3c/internal/gen"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// Job is one module queued for compilation in a CompileBatch call.
type Job struct {
	Name       string // caller-chosen label, surfaced in BatchResult for correlation
	Module     *ir.Module
	Generation gen.Generation
	Options    Options
}

// BatchResult pairs a Job's Name with its outcome. Err is non-nil exactly
// when Result is nil.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// CompileBatch realizes spec.md §5's "callers may compile multiple shaders
// in parallel using one module-arena per compilation and one context per
// thread": each Job already owns an independent *ir.Module (and therefore
// an independent arena, per internal/arena's one-arena-per-Module
// convention), so the only shared state across goroutines is c itself,
// which is safe for concurrent use — its one mutable field is the
// atomically-updated shader counter.
//
// Grounded on golang.org/x/sync/errgroup's canonical fan-out-and-collect
// shape. Unlike a typical errgroup use, a failing Job does not cancel its
// siblings: spec.md §1 treats "reentrancy of a single compilation context"
// as the only non-goal around concurrency, and one shader's compile error
// has no bearing on whether an unrelated shader in the same batch should
// still produce a binary (§7: "either the output is complete or no output
// is produced" is a per-compile guarantee, not a per-batch one).
func (c *Context) CompileBatch(ctx context.Context, jobs []Job) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))

	g, _ := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := c.Compile(job.Module, job.Generation, job.Options)
			results[i] = BatchResult{Name: job.Name, Result: res, Err: err}
			return nil
		})
	}
	// g.Wait's error is always nil here (every Go func returns nil), kept
	// only so a future cancellation-aware variant has somewhere to surface
	// a group-level error without changing CompileBatch's signature.
	_ = g.Wait()
	return results, nil
}
