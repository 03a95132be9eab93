package dataflow

import (
	"context"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

var dbg = log.New(os.Stderr, term.MagentaBold("dataflow:")+" ", 0)

// Override lets an architecture-specific analyzer intercept a term's
// evaluation before the default rules of spec.md §4.5 apply, e.g. x86's FPU
// top-of-stack pointer forcing itself to a concrete zero.
type Override interface {
	// EvalTerm evaluates t against pre and reports true if it produced a
	// value; returning false falls through to the default evaluation.
	EvalTerm(a *Analyzer, t ir.Term, pre *ReachingDefs) (AbstractValue, bool)
}

// Result is the output of a completed (or canceled) analysis run: every
// term's computed abstract value, the reaching-definitions state at the
// entry and exit of every block, the definitions reaching each term at the
// moment it was evaluated (an empty slice means an undefined use — no
// definition reached it), and the pre-state captured at every
// RememberReachingDefs snapshot (consumed by the signature analyzer).
type Result struct {
	Values    map[ir.Term]AbstractValue
	Locations map[ir.Term]ir.MemoryLocation
	In, Out   map[*ir.BasicBlock]*ReachingDefs
	UseDefs   map[ir.Term][]ir.Term
	Snapshots map[*ir.RememberReachingDefs]*ReachingDefs
}

func newResult() *Result {
	return &Result{
		Values:    make(map[ir.Term]AbstractValue),
		Locations: make(map[ir.Term]ir.MemoryLocation),
		In:        make(map[*ir.BasicBlock]*ReachingDefs),
		Out:       make(map[*ir.BasicBlock]*ReachingDefs),
		UseDefs:   make(map[ir.Term][]ir.Term),
		Snapshots: make(map[*ir.RememberReachingDefs]*ReachingDefs),
	}
}

// HookSite is the static context a Callback statement's closure needs
// beyond the convention/signatures snapshot, precomputed once by whoever
// installs the callback (the orchestrator) since it depends on the
// callback's position in the IR (is this anchor a return jump? what stack
// argument size applies?) rather than anything the dataflow fixpoint itself
// discovers.
type HookSite struct {
	IsReturnJump bool
	StackArgSize *int64
}

// Analyzer computes the fixpoint dataflow of a single function (spec.md
// §4.5). Convention and Signatures supply the HookContext a Callback
// statement's closure needs; Override, if set, lets an architecture
// specialize term evaluation.
type Analyzer struct {
	Function   *ir.Function
	Convention *calling.Convention
	Signatures *calling.Signatures
	Override   Override
	HookSites  map[*ir.Callback]HookSite

	result *Result
}

// NewAnalyzer returns an analyzer for fn under conv, consulting (and
// potentially mutating, via installed hook callbacks) sigs.
func NewAnalyzer(fn *ir.Function, conv *calling.Convention, sigs *calling.Signatures) *Analyzer {
	return &Analyzer{Function: fn, Convention: conv, Signatures: sigs}
}

// Run executes the worklist fixpoint to convergence, polling ctx between
// basic blocks (spec.md §5). It returns the partial result and ctx's error
// if canceled.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	a.result = newResult()
	blocks := a.Function.Blocks()
	for _, b := range blocks {
		a.result.In[b] = NewReachingDefs()
		a.result.Out[b] = NewReachingDefs()
	}

	preds := predecessorsOf(blocks)
	worklist := append([]*ir.BasicBlock(nil), blocks...)
	onList := make(map[*ir.BasicBlock]bool, len(blocks))
	for _, b := range blocks {
		onList[b] = true
	}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return a.result, errors.WithStack(err)
		}

		b := worklist[0]
		worklist = worklist[1:]
		onList[b] = false

		in := NewReachingDefs()
		for _, p := range preds[b] {
			in = Join(in, a.result.Out[p])
		}
		a.result.In[b] = in

		out, hookChanged := a.execBlock(b, in)
		changed := !out.Equal(a.result.Out[b]) || hookChanged
		a.result.Out[b] = out

		if changed {
			// A callback that spliced a hook patch into b must see its own
			// new statements next time around, since Statements() snapshots
			// the block's list once per execBlock call.
			if hookChanged && !onList[b] {
				onList[b] = true
				worklist = append(worklist, b)
			}
			for _, s := range successorsOf(b) {
				if !onList[s] {
					onList[s] = true
					worklist = append(worklist, s)
				}
			}
		}
	}
	return a.result, nil
}

// execBlock runs every statement of b in order against in, mutating
// a.result.Values/Snapshots as it goes, and returns the block's exit
// reaching-definitions state. A block may be re-run (a caller loops until
// fixpoint) because a Callback closure can change the program it traverses.
func (a *Analyzer) execBlock(b *ir.BasicBlock, in *ReachingDefs) (*ReachingDefs, bool) {
	state := in.Clone()
	hookChanged := false
	for _, stmt := range b.Statements() {
		switch s := stmt.(type) {
		case *ir.Assignment:
			a.recordUses(s.Right, state)
			val := a.eval(s.Right, state)
			loc, ok := a.resolveLocation(s.Left, state)
			a.result.Values[s.Left] = val
			a.result.Values[s.Right] = val
			if ok {
				a.result.Locations[s.Left] = loc
				state.Kill(loc)
				state.Install(loc, s.Left)
			}
		case *ir.Touch:
			if s.Value.Role() == ir.RoleRead {
				a.recordUses(s.Value, state)
			}
			val := a.eval(s.Value, state)
			a.result.Values[s.Value] = val
			loc, ok := a.resolveLocation(s.Value, state)
			if !ok {
				continue
			}
			a.result.Locations[s.Value] = loc
			switch s.Value.Role() {
			case ir.RoleKill:
				state.Kill(loc)
			case ir.RoleWrite:
				state.Kill(loc)
				state.Install(loc, s.Value)
			case ir.RoleRead:
				// UseDefs above already recorded whether this read was
				// undefined; no state change on a plain read.
			}
		case *ir.Call, *ir.Jump, *ir.Halt:
			// Terminators: successors take the post-state computed below.
		case *ir.RememberReachingDefs:
			a.result.Snapshots[s] = state.Clone()
		case *ir.Callback:
			if a.runCallback(s) {
				hookChanged = true
			}
		default:
			dbg.Printf("unhandled statement type %T", s)
		}
	}
	return state, hookChanged
}

// recordUses walks t and every term it owns, recording (for each one whose
// memory location resolves) the set of terms currently defining that
// location. An empty recorded set marks an undefined use (spec.md §4.6).
func (a *Analyzer) recordUses(t ir.Term, state *ReachingDefs) {
	if loc, ok := a.resolveLocation(t, state); ok {
		a.result.Locations[t] = loc
		a.result.UseDefs[t] = state.Project(loc)
	}
	t.VisitChildTerms(func(child ir.Term) {
		a.recordUses(child, state)
	})
}

// runCallback invokes the closure registered for s with the current hook
// context. The closure's concrete type is agreed between this package and
// ir/calling without either being imported by ir itself (spec.md §9).
func (a *Analyzer) runCallback(s *ir.Callback) bool {
	fn := a.Function.Callback(s.ID)
	selector, ok := fn.(calling.HookSelector)
	if !ok {
		return false
	}
	ctx := &calling.HookContext{Convention: a.Convention, Signatures: a.Signatures}
	if site, ok := a.HookSites[s]; ok {
		ctx.IsReturnJump = site.IsReturnJump
		ctx.StackArgSize = site.StackArgSize
	}
	return selector(ctx)
}

func predecessorsOf(blocks []*ir.BasicBlock) map[*ir.BasicBlock][]*ir.BasicBlock {
	preds := make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, b := range blocks {
		for _, s := range successorsOf(b) {
			preds[s] = append(preds[s], b)
		}
	}
	return preds
}

func successorsOf(b *ir.BasicBlock) []*ir.BasicBlock {
	j, ok := b.Last().(*ir.Jump)
	if !ok {
		return nil
	}
	var out []*ir.BasicBlock
	out = appendTarget(out, j.Then)
	if j.IsConditional() {
		out = appendTarget(out, j.Else)
	}
	return out
}

func appendTarget(out []*ir.BasicBlock, t ir.JumpTarget) []*ir.BasicBlock {
	switch t.Kind {
	case ir.TargetBlock:
		if t.Block != nil {
			out = append(out, t.Block)
		}
	case ir.TargetTable:
		for _, e := range t.Table {
			if e.Block != nil {
				out = append(out, e.Block)
			}
		}
	}
	return out
}
