// Package signature implements the cross-function signature analyzer
// (spec.md §4.6): given every function's completed dataflow, it
// reconstructs each callee id's argument list and return value, iterating
// to a fixpoint over the shared calling.Signatures map.
package signature

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"

	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

var dbg = log.New(os.Stderr, term.MagentaBold("signature:")+" ", 0)
var warn = log.New(os.Stderr, term.RedBold("signature:")+" ", 0)

// FunctionInfo bundles a function with its completed dataflow result and,
// if it is itself a recognized callable, the callee id naming it.
type FunctionInfo struct {
	Func     *ir.Function
	CalleeID ir.CalleeID
	Result   *dataflow.Result
}

// CallInfo bundles a call statement with its containing function's info,
// the callee id it resolves to, and the call hook's speculative
// return-value writes (one per convention.ReturnCandidates entry, nil if
// the call's signature was already known when dataflow ran) and
// remember-reaching-defs snapshot (nil under the same condition).
type CallInfo struct {
	Stmt               *ir.Call
	Caller             *FunctionInfo
	CalleeID           ir.CalleeID
	SpeculativeReturns []ir.Term
	Snapshot           *ir.RememberReachingDefs
}

// ReturnInfo bundles a return jump with the function info of the function
// it returns from.
type ReturnInfo struct {
	Jump *ir.Jump
	Func *FunctionInfo
}

// Analyzer reconstructs argument lists and return values for every callee
// id referenced by Functions, Calls or Returns.
type Analyzer struct {
	Convention *calling.Convention
	Signatures *calling.Signatures
	Functions  []*FunctionInfo
	Calls      []*CallInfo
	Returns    []*ReturnInfo

	// MaxPasses bounds iteration; spec.md §4.6 requires at least 3.
	MaxPasses int
}

// referrers groups one callee id's referrers by kind (spec.md §4.6).
type referrers struct {
	funcs   []*FunctionInfo
	calls   []*CallInfo
	returns []*ReturnInfo
}

func (a *Analyzer) groupReferrers() map[ir.CalleeID]*referrers {
	groups := make(map[ir.CalleeID]*referrers)
	get := func(id ir.CalleeID) *referrers {
		g, ok := groups[id]
		if !ok {
			g = &referrers{}
			groups[id] = g
		}
		return g
	}
	for _, fi := range a.Functions {
		if fi.CalleeID.IsValid() {
			g := get(fi.CalleeID)
			g.funcs = append(g.funcs, fi)
		}
	}
	for _, ci := range a.Calls {
		if ci.CalleeID.IsValid() {
			g := get(ci.CalleeID)
			g.calls = append(g.calls, ci)
		}
	}
	for _, ri := range a.Returns {
		if ri.Func.CalleeID.IsValid() {
			g := get(ri.Func.CalleeID)
			g.returns = append(g.returns, ri)
		}
	}
	return groups
}

// Run iterates argument and return-value inference over every callee id
// until a full pass changes nothing, or the pass ceiling is hit (spec.md
// §4.6: "a bounded iteration ceiling (>= 3 passes) ... exceeding it yields
// a warning and halts").
func (a *Analyzer) Run() {
	maxPasses := a.MaxPasses
	if maxPasses < 3 {
		maxPasses = 3
	}
	groups := a.groupReferrers()

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for id, g := range groups {
			if a.inferArguments(id, g) {
				changed = true
			}
			if a.inferReturnValue(id, g) {
				changed = true
			}
		}
		if !changed {
			dbg.Printf("signature analysis converged after %d pass(es)", pass+1)
			return
		}
	}
	warn.Printf("signature analysis hit the %d-pass ceiling without converging", maxPasses)
}
