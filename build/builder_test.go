package build

import (
	"testing"

	"github.com/mewmew/nc/ir"
)

func TestGetBlockForInstructionExtendsSequentialBlock(t *testing.T) {
	b := NewBuilder(ir.NewProgram())

	first, err := b.GetBlockForInstruction(0x1000, 0x1002)
	if err != nil {
		t.Fatalf("GetBlockForInstruction: %v", err)
	}
	first.PushBack(ir.NewJump(ir.AddressTarget(ir.NewConstant(0x2000, 32))))

	second, err := b.GetBlockForInstruction(0x1002, 0x1005)
	if err != nil {
		t.Fatalf("GetBlockForInstruction: %v", err)
	}
	if second != first {
		t.Fatalf("a second instruction directly abutting the first's end should extend the same block, got a new one")
	}
	if second.SuccessorAddr == nil || *second.SuccessorAddr != 0x1005 {
		t.Errorf("SuccessorAddr = %v, want 0x1005", second.SuccessorAddr)
	}
}

func TestGetBlockForInstructionSplitsMidBlockAddress(t *testing.T) {
	b := NewBuilder(ir.NewProgram())

	block, err := b.GetBlockForInstruction(0x1000, 0x1010)
	if err != nil {
		t.Fatalf("GetBlockForInstruction: %v", err)
	}
	mid := ir.NewJump(ir.AddressTarget(ir.NewConstant(0x2000, 32)))
	mid.SetInstructionAddr(0x1008)
	block.PushBack(mid)

	// 0x1008 lies strictly inside [0x1000, 0x1010), not at the block's
	// current end; it must split rather than silently extend in place.
	got, err := b.GetBlockForInstruction(0x1008, 0x1010)
	if err != nil {
		t.Fatalf("GetBlockForInstruction: %v", err)
	}
	if got == block {
		t.Fatalf("instrAddr 0x1008 lies inside the existing block's range, want a split suffix, got the same block")
	}
	if got.EntryAddr == nil || *got.EntryAddr != 0x1008 {
		t.Errorf("split suffix EntryAddr = %v, want 0x1008", got.EntryAddr)
	}
	if block.SuccessorAddr == nil || *block.SuccessorAddr != 0x1008 {
		t.Errorf("original block's SuccessorAddr after split = %v, want 0x1008", block.SuccessorAddr)
	}
}

func TestGetBlockForInstructionCreatesFreshBlockWhenDisjoint(t *testing.T) {
	b := NewBuilder(ir.NewProgram())

	first, err := b.GetBlockForInstruction(0x1000, 0x1002)
	if err != nil {
		t.Fatalf("GetBlockForInstruction: %v", err)
	}

	second, err := b.GetBlockForInstruction(0x2000, 0x2002)
	if err != nil {
		t.Fatalf("GetBlockForInstruction: %v", err)
	}
	if second == first {
		t.Errorf("a disjoint address should not reuse the earlier block")
	}
	if second.EntryAddr == nil || *second.EntryAddr != 0x2000 {
		t.Errorf("EntryAddr = %v, want 0x2000", second.EntryAddr)
	}
}
