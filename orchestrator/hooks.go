package orchestrator

import (
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
	"github.com/mewmew/nc/signature"
)

// functionRig bundles one function with the installed-hook bookkeeping the
// per-pass dataflow/signature loop needs: its own signature identity, the
// convention it was instrumented under, the static return-jump
// classification of its hook callbacks, and the call/return sites feeding
// the cross-function signature analyzer.
type functionRig struct {
	info       *signature.FunctionInfo
	convention *calling.Convention
	hookSites  map[*ir.Callback]dataflow.HookSite
	calls      []*signature.CallInfo
	returns    []*signature.ReturnInfo
}

// installHooks instruments fn's entry, call and return sites (spec.md
// §4.10 steps 3-4): one Callback statement per site, each indexing a
// closure built by hm. Entry and return closures splice at their callback
// statement, which stays in place as the anchor; call closures splice at
// the call statement itself.
func (o *Orchestrator) installHooks(fn *ir.Function, conv *calling.Convention, calleeID ir.CalleeID) *functionRig {
	rig := &functionRig{
		info:       &signature.FunctionInfo{Func: fn, CalleeID: calleeID},
		convention: conv,
		hookSites:  make(map[*ir.Callback]dataflow.HookSite),
	}

	entryCB := ir.NewCallback(0)
	entryCB.ID = fn.RegisterCallback(o.HookManager.EntrySelector(entryCB, calleeID))
	fn.Entry.PushFront(entryCB)

	for _, b := range fn.Blocks() {
		for _, stmt := range append([]ir.Statement(nil), b.Statements()...) {
			switch s := stmt.(type) {
			case *ir.Call:
				calleeOfCall := resolveCallTarget(s)
				cb := ir.NewCallback(0)
				// CallSelector's anchor doubles as the CallSignature lookup
				// key (calling.Signatures.SetCallSignature keys by the call
				// statement itself), so the call, not its callback, is the
				// anchor passed here.
				cb.ID = fn.RegisterCallback(o.HookManager.CallSelector(s, calleeOfCall))
				b.InsertAfter(s, cb)
				rig.calls = append(rig.calls, &signature.CallInfo{
					Stmt: s, Caller: rig.info, CalleeID: calleeOfCall,
				})
			case *ir.Jump:
				if !isReturnJump(s) {
					continue
				}
				cb := ir.NewCallback(0)
				cb.ID = fn.RegisterCallback(o.HookManager.ReturnSelector(cb, calleeID))
				b.InsertBefore(s, cb)
				rig.hookSites[cb] = dataflow.HookSite{IsReturnJump: true}
				rig.returns = append(rig.returns, &signature.ReturnInfo{Jump: s, Func: rig.info})
			}
		}
	}
	return rig
}

// isReturnJump recognizes the IR's generic "this function is done" edge: an
// unconditional jump whose destination is computed at runtime (a popped
// return address, or an unresolved tail jump) rather than resolved to a
// block in this program, since a function never contains a block for
// "wherever the caller happens to be".
func isReturnJump(j *ir.Jump) bool {
	return !j.IsConditional() && j.Then.Kind == ir.TargetAddress
}

// resolveCallTarget assigns a callee id to a call statement: its target's
// constant address if statically known, else the call site's own
// instruction address (a stable identity for an unresolved indirect call),
// else the generic function-pointer kind for a synthetic call with neither.
func resolveCallTarget(call *ir.Call) ir.CalleeID {
	if c, ok := call.Target.(*ir.Constant); ok {
		return ir.EntryCalleeID(bin.Addr(c.Value))
	}
	if addr, ok := call.InstructionAddr(); ok {
		return ir.CallSiteCalleeID(addr)
	}
	return ir.CalleeID{Kind: ir.CalleeFunctionPointer}
}

// refreshCallInfos re-derives each call's speculative-return bookkeeping
// from whatever hook patch is currently spliced after it (spec.md §4.6): if
// the callee's signature was still unknown the last time the call hook was
// rebuilt, the patch carries a RememberReachingDefs snapshot followed by one
// speculative undefined write per return candidate; once the signature is
// known the patch carries neither, and the call no longer votes.
func refreshCallInfos(calls []*signature.CallInfo) {
callLoop:
	for _, ci := range calls {
		ci.Snapshot = nil
		ci.SpeculativeReturns = nil
		block := ci.Stmt.Block()
		if block == nil {
			continue
		}
		after := false
		for _, s := range block.Statements() {
			if s == ir.Statement(ci.Stmt) {
				after = true
				continue
			}
			if !after {
				continue
			}
			switch v := s.(type) {
			case *ir.Touch:
				// The patch's leading stack-pointer (and, once the
				// signature is known, argument) reads carry no speculative
				// bookkeeping of their own.
			case *ir.RememberReachingDefs:
				ci.Snapshot = v
			case *ir.Assignment:
				if ci.Snapshot == nil {
					continue
				}
				if _, ok := v.Right.(*ir.Intrinsic); !ok {
					continue callLoop
				}
				ci.SpeculativeReturns = append(ci.SpeculativeReturns, v.Left)
			case *ir.Callback:
				// Hook patches end at the next site's own callback anchor.
				continue callLoop
			default:
				continue callLoop
			}
		}
	}
}
