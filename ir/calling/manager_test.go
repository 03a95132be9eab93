package calling

import (
	"testing"

	"github.com/mewmew/nc/ir"
)

func testConvention() *Convention {
	sp := ir.MemoryLocation{Domain: ir.FirstRegisterDomain, BitOffset: 0, BitSize: 32}
	eax := ir.MemoryLocation{Domain: ir.FirstRegisterDomain + 1, BitOffset: 0, BitSize: 32}
	return &Convention{
		Name:             "test",
		StackPointer:     sp,
		ReturnCandidates: []ir.MemoryLocation{eax},
	}
}

// TestReturnSelectorTwoSitesSameCallee reproduces a function with two
// return jumps to the same callee id: both ReturnSelectors build from the
// identical hookKey, and must not be handed the same *Patch to splice.
func TestReturnSelectorTwoSitesSameCallee(t *testing.T) {
	mgr := NewHookManager()
	conv := testConvention()
	sigs := NewSignatures()
	callee := ir.EntryCalleeID(0x1000)

	block1 := ir.NewBasicBlock(0x1000)
	anchor1 := ir.NewJump(ir.AddressTarget(ir.NewLocationAccess(conv.StackPointer)))
	block1.PushBack(anchor1)

	block2 := ir.NewBasicBlock(0x2000)
	anchor2 := ir.NewJump(ir.AddressTarget(ir.NewLocationAccess(conv.StackPointer)))
	block2.PushBack(anchor2)

	sel1 := mgr.ReturnSelector(anchor1, callee)
	sel2 := mgr.ReturnSelector(anchor2, callee)

	ctx := &HookContext{Convention: conv, Signatures: sigs, IsReturnJump: true}

	if changed := sel1(ctx); !changed {
		t.Errorf("sel1(ctx) = false, want true on first install")
	}
	if changed := sel2(ctx); !changed {
		t.Errorf("sel2(ctx) = false, want true on first install")
	}

	if len(block1.Statements()) != 2 {
		t.Errorf("block1 has %d statements, want 2 (anchor + hook)", len(block1.Statements()))
	}
	if len(block2.Statements()) != 2 {
		t.Errorf("block2 has %d statements, want 2 (anchor + hook)", len(block2.Statements()))
	}
}

func TestReturnSelectorNoChangeIsNoOp(t *testing.T) {
	mgr := NewHookManager()
	conv := testConvention()
	sigs := NewSignatures()
	callee := ir.EntryCalleeID(0x1000)

	block := ir.NewBasicBlock(0x1000)
	anchor := ir.NewJump(ir.AddressTarget(ir.NewLocationAccess(conv.StackPointer)))
	block.PushBack(anchor)

	sel := mgr.ReturnSelector(anchor, callee)
	ctx := &HookContext{Convention: conv, Signatures: sigs, IsReturnJump: true}

	if changed := sel(ctx); !changed {
		t.Fatalf("first call: changed = false, want true")
	}
	if changed := sel(ctx); changed {
		t.Errorf("second call with unchanged context: changed = true, want false")
	}
	if len(block.Statements()) != 2 {
		t.Errorf("block has %d statements after a no-op reinvocation, want 2 (no duplicate splice)", len(block.Statements()))
	}
}

func TestReturnSelectorUninstallsWhenNoLongerReturnJump(t *testing.T) {
	mgr := NewHookManager()
	conv := testConvention()
	sigs := NewSignatures()
	callee := ir.EntryCalleeID(0x1000)

	block := ir.NewBasicBlock(0x1000)
	anchor := ir.NewJump(ir.AddressTarget(ir.NewLocationAccess(conv.StackPointer)))
	block.PushBack(anchor)

	sel := mgr.ReturnSelector(anchor, callee)

	returning := &HookContext{Convention: conv, Signatures: sigs, IsReturnJump: true}
	if changed := sel(returning); !changed {
		t.Fatalf("install: changed = false, want true")
	}

	notReturning := &HookContext{Convention: conv, Signatures: sigs, IsReturnJump: false}
	if changed := sel(notReturning); !changed {
		t.Errorf("uninstall: changed = false, want true")
	}
	if len(block.Statements()) != 1 {
		t.Errorf("block has %d statements after uninstall, want 1 (anchor only)", len(block.Statements()))
	}
}
