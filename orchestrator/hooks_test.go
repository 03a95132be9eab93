package orchestrator

import (
	"testing"

	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/signature"
)

// pushSpeculativePatch appends the statement shape BuildCallHook leaves
// behind when a callee's signature is still unknown: a snapshot followed by
// one speculative undefined write per return candidate.
func pushSpeculativePatch(b *ir.BasicBlock, n int) *ir.RememberReachingDefs {
	snap := ir.NewRememberReachingDefs()
	b.PushBack(snap)
	for i := 0; i < n; i++ {
		rv := ir.NewLocationAccess(ir.MemoryLocation{Domain: ir.FirstRegisterDomain, BitOffset: 0, BitSize: 32})
		b.PushBack(ir.NewAssignment(rv, ir.NewIntrinsic(ir.IntrinsicUndefined, 32)))
	}
	return snap
}

// TestRefreshCallInfosMultipleCallsToSameCallee locks down that every call
// site in a function gets its speculative-return bookkeeping re-derived, not
// just the first one encountered in the outer range loop.
func TestRefreshCallInfosMultipleCallsToSameCallee(t *testing.T) {
	block := ir.NewBasicBlock(0x1000)
	callee := ir.EntryCalleeID(0x2000)

	call1 := ir.NewCall(ir.NewConstant(0x2000, 32))
	block.PushBack(call1)
	pushSpeculativePatch(block, 2)

	call2 := ir.NewCall(ir.NewConstant(0x2000, 32))
	block.PushBack(call2)
	pushSpeculativePatch(block, 2)

	calls := []*signature.CallInfo{
		{Stmt: call1, CalleeID: callee},
		{Stmt: call2, CalleeID: callee},
	}

	refreshCallInfos(calls)

	for i, ci := range calls {
		if ci.Snapshot == nil {
			t.Errorf("call %d: Snapshot is nil, want the call's own RememberReachingDefs", i)
		}
		if len(ci.SpeculativeReturns) != 2 {
			t.Errorf("call %d: len(SpeculativeReturns) = %d, want 2", i, len(ci.SpeculativeReturns))
		}
	}
	if calls[0].Snapshot == calls[1].Snapshot {
		t.Errorf("both calls share the same Snapshot; each call's patch should be scanned independently")
	}
}

// TestRefreshCallInfosStopsAtNextCallback ensures a known-signature call
// (whose patch carries no snapshot) doesn't pick up a neighboring call's
// bookkeeping once hooks are re-spliced as callbacks between sites.
func TestRefreshCallInfosStopsAtNextCallback(t *testing.T) {
	block := ir.NewBasicBlock(0x1000)

	call1 := ir.NewCall(ir.NewConstant(0x2000, 32))
	block.PushBack(call1)
	block.PushBack(ir.NewCallback(0))

	call2 := ir.NewCall(ir.NewConstant(0x3000, 32))
	block.PushBack(call2)
	pushSpeculativePatch(block, 1)

	calls := []*signature.CallInfo{
		{Stmt: call1, CalleeID: ir.EntryCalleeID(0x2000)},
		{Stmt: call2, CalleeID: ir.EntryCalleeID(0x3000)},
	}

	refreshCallInfos(calls)

	if calls[0].Snapshot != nil {
		t.Errorf("call 1 has a known signature (no patch of its own), want nil Snapshot")
	}
	if calls[1].Snapshot == nil {
		t.Errorf("call 2: Snapshot is nil, want its own RememberReachingDefs")
	}
}
