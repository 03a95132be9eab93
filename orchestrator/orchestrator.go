// Package orchestrator drives the eight-step decompilation pipeline of
// spec.md §4.10: partition a program into functions, instrument them with
// calling-convention hooks, analyze dataflow and signatures to a fixpoint,
// then recover structure, variables and types for each function.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/cprint"
	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
	"github.com/mewmew/nc/partition"
	"github.com/mewmew/nc/region"
	"github.com/mewmew/nc/signature"
	"github.com/mewmew/nc/typeinfer"
	"github.com/mewmew/nc/variable"
)

// ConventionDetector picks the calling convention a function was compiled
// under. The default detector always returns the first registered
// convention; a host targeting a platform with more than one live ABI
// (e.g. x86-64 fastcall vs. stdcall thunks) supplies its own.
type ConventionDetector func(fn *ir.Function) *calling.Convention

// Orchestrator holds the shared state threaded through every step of the
// pipeline, and the knobs a host may override via Option.
type Orchestrator struct {
	Program            *ir.Program
	Conventions        []*calling.Convention
	Override           dataflow.Override
	DetectConvention   ConventionDetector
	Signatures         *calling.Signatures
	HookManager        *calling.HookManager
	SymbolLookup       func(addr bin.Addr) (string, bool)
	Logger             Logger
	MaxSignaturePasses int
	Concurrency        int
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithConventions registers the calling-convention catalog a program may be
// built under; the first entry is the default when DetectConvention is
// unset or returns nil.
func WithConventions(convs ...*calling.Convention) Option {
	return func(o *Orchestrator) { o.Conventions = convs }
}

// WithConventionDetector overrides the default always-first-convention
// detector.
func WithConventionDetector(detect ConventionDetector) Option {
	return func(o *Orchestrator) { o.DetectConvention = detect }
}

// WithSymbolLookup supplies the host's symbol table, consulted when naming
// functions (spec.md §4.10 step 2).
func WithSymbolLookup(lookup func(addr bin.Addr) (string, bool)) Option {
	return func(o *Orchestrator) { o.SymbolLookup = lookup }
}

// WithOverride installs an architecture-specific term evaluator consulted
// before the generic dataflow rules (e.g. x86's x87 top-of-stack pseudo-
// register always reading as zero).
func WithOverride(override dataflow.Override) Option {
	return func(o *Orchestrator) { o.Override = override }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) { o.Logger = l }
}

// WithMaxSignaturePasses bounds the outer dataflow/signature convergence
// loop (distinct from signature.Analyzer's own inner pass ceiling).
func WithMaxSignaturePasses(n int) Option {
	return func(o *Orchestrator) { o.MaxSignaturePasses = n }
}

// WithConcurrency bounds how many functions are analyzed in parallel.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.Concurrency = n }
}

// New returns an orchestrator for prog, ready to Run.
func New(prog *ir.Program, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Program:            prog,
		Signatures:         calling.NewSignatures(),
		HookManager:        calling.NewHookManager(),
		Logger:             NewStdLogger(),
		MaxSignaturePasses: 8,
		Concurrency:        4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FunctionResult bundles one recovered function with every analysis
// artifact the pipeline produced for it.
type FunctionResult struct {
	Function   *ir.Function
	CalleeID   ir.CalleeID
	Convention *calling.Convention
	Dataflow   *dataflow.Result
	Variables  []*variable.Variable
	Types      *typeinfer.Result
	Region     *region.Node
	Code       string
}

// Result is the output of a completed Run.
type Result struct {
	Functions []*FunctionResult
}

// pipelineFunc bundles a partitioned function with the bookkeeping carried
// across pipeline steps: its rig of installed hooks, its resolved callee id
// and convention, and its most recent dataflow result.
type pipelineFunc struct {
	fn        *ir.Function
	rig       *functionRig
	data      *dataflow.Result
	anonIndex int
}

// Run executes the eight-step pipeline described in spec.md §4.10 and
// returns one FunctionResult per partitioned function.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	// Step 1: partition into functions.
	fns := partition.Partition(o.Program)

	// Step 2: name every function, and resolve its calling-convention /
	// callee identity ahead of hook installation.
	pfs := make([]*pipelineFunc, len(fns))
	anonIndex := 0
	for i, fn := range fns {
		o.nameFunction(fn, anonIndex)
		pfs[i] = &pipelineFunc{fn: fn, anonIndex: anonIndex}
		if fn.EntryAddr == nil {
			anonIndex++
		}
	}

	// Step 3: install entry/call/return hooks on every function.
	for _, pf := range pfs {
		calleeID := calleeIDOf(pf.fn, pf.anonIndex)
		conv := o.conventionFor(pf.fn)
		pf.rig = o.installHooks(pf.fn, conv, calleeID)
	}

	// Steps 4-6: per-function dataflow to a local fixpoint, then
	// cross-function signature analysis, iterated until the shared
	// signature map stops changing or the pass ceiling is hit.
	if err := o.analyzeToFixpoint(ctx, pfs); err != nil {
		return nil, err
	}

	// Step 7: per-function structural analysis, variable recovery and type
	// inference, run in parallel over a shared (mutex-guarded) variable
	// index.
	globalVars := variable.NewIndex()
	var mu sync.Mutex
	results := make([]*FunctionResult, len(pfs))
	if err := o.forEachFunction(ctx, pfs, func(i int, pf *pipelineFunc) error {
		g := region.Build(pf.fn)
		root := region.Reduce(g)

		mu.Lock()
		vars := variable.Recover(pf.fn, pf.data, globalVars)
		mu.Unlock()

		types := typeinfer.NewAnalyzer(pf.fn, o.Signatures, pf.data).Run()

		sig, _ := o.Signatures.FunctionSignature(pf.rig.info.CalleeID)
		// Step 8: hand off to the code-generation back end.
		code := cprint.Stub(pf.fn.Name, sig)

		results[i] = &FunctionResult{
			Function:   pf.fn,
			CalleeID:   pf.rig.info.CalleeID,
			Convention: pf.rig.convention,
			Dataflow:   pf.data,
			Variables:  vars,
			Types:      types,
			Region:     root,
			Code:       code,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &Result{Functions: results}, nil
}

// conventionFor returns the convention fn was compiled under: the detector's
// choice if one is configured and returns non-nil, else the catalog's first
// entry, else nil (an orchestrator with no conventions configured at all
// cannot hook anything meaningfully).
func (o *Orchestrator) conventionFor(fn *ir.Function) *calling.Convention {
	if o.DetectConvention != nil {
		if c := o.DetectConvention(fn); c != nil {
			return c
		}
	}
	if len(o.Conventions) > 0 {
		return o.Conventions[0]
	}
	return nil
}

// calleeIDOf assigns fn a stable identity: its entry address if it has one,
// else a synthetic id keyed by anonIndex (the same sequence nameFunction
// drew its "func_ptr_N" suffix from), so two distinct entry-less functions
// never collide on one callee id.
func calleeIDOf(fn *ir.Function, anonIndex int) ir.CalleeID {
	if fn.EntryAddr != nil {
		return ir.EntryCalleeID(*fn.EntryAddr)
	}
	return ir.SyntheticCalleeID(anonIndex)
}

// analyzeToFixpoint runs steps 4-6: dataflow on every function, then
// signature analysis over the combined call/return graph, repeating while
// the shared signature map keeps changing (spec.md §4.10: "repeat 5 and 6
// until signatures stop changing, or a pass ceiling is hit").
func (o *Orchestrator) analyzeToFixpoint(ctx context.Context, pfs []*pipelineFunc) error {
	infos := make([]*signature.FunctionInfo, len(pfs))
	for i, pf := range pfs {
		infos[i] = pf.rig.info
	}

	for pass := 0; pass < o.MaxSignaturePasses; pass++ {
		before := o.Signatures.Version()

		if err := o.forEachFunction(ctx, pfs, func(i int, pf *pipelineFunc) error {
			a := dataflow.NewAnalyzer(pf.fn, pf.rig.convention, o.Signatures)
			a.HookSites = pf.rig.hookSites
			a.Override = o.Override
			res, err := a.Run(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			pf.data = res
			pf.rig.info.Result = res
			return nil
		}); err != nil {
			return err
		}

		for _, pf := range pfs {
			refreshCallInfos(pf.rig.calls)
		}

		var calls []*signature.CallInfo
		var returns []*signature.ReturnInfo
		for _, pf := range pfs {
			calls = append(calls, pf.rig.calls...)
			returns = append(returns, pf.rig.returns...)
		}

		sa := &signature.Analyzer{
			Convention: o.defaultConvention(),
			Signatures: o.Signatures,
			Functions:  infos,
			Calls:      calls,
			Returns:    returns,
		}
		sa.Run()
		sa.PublishCallSignatures()

		if o.Signatures.Version() == before {
			dbg.Printf("signature/dataflow fixpoint reached after %d pass(es)", pass+1)
			return nil
		}
	}
	warn.Printf("signature/dataflow loop hit the %d-pass ceiling without converging", o.MaxSignaturePasses)
	return nil
}

// defaultConvention returns the catalog's first convention, used by the
// signature analyzer's argument-location reasoning; mixed-convention
// programs are approximated with a single convention there (spec.md leaves
// per-call-site convention selection to the hook layer, which already
// tracks it per function).
func (o *Orchestrator) defaultConvention() *calling.Convention {
	if len(o.Conventions) > 0 {
		return o.Conventions[0]
	}
	return nil
}

// forEachFunction runs task over every pipeline function, bounded to
// o.Concurrency concurrent goroutines, returning the first error
// encountered (if any).
func (o *Orchestrator) forEachFunction(ctx context.Context, pfs []*pipelineFunc, task func(i int, pf *pipelineFunc) error) error {
	limit := o.Concurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	errs := make([]error, len(pfs))

	for i, pf := range pfs {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		i, pf := i, pf
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = task(i, pf)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Name reports a human-readable label for a FunctionResult, for logging.
func (r *FunctionResult) Name() string {
	if r.Function.Name != "" {
		return r.Function.Name
	}
	return fmt.Sprintf("%p", r.Function)
}
