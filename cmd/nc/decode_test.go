package main

import (
	"testing"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/build"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/loader/pe"
)

// TestDecodeSectionForcedSplitSynthesizesFallthrough builds a two-instruction
// stream - mov eax, 1; ret - and forces a block split between them (as the
// blocks.json oracle can). The split lands after an ordinary instruction
// with no jump of its own, so decodeSection must synthesize a fallthrough
// edge or the two blocks present as disconnected dead ends to every later
// pass that walks the block graph through *ir.Jump alone.
func TestDecodeSectionForcedSplitSynthesizesFallthrough(t *testing.T) {
	data := []byte{
		0xB8, 0x01, 0x00, 0x00, 0x00, // mov eax, 1
		0xC3, // ret
	}
	code := pe.Code{Addr: 0x1000, Data: data}
	forceSplit := map[bin.Addr]bool{0x1005: true}

	prog := ir.NewProgram()
	b := build.NewBuilder(prog)
	if err := decodeSection(b, code, forceSplit); err != nil {
		t.Fatalf("decodeSection: %v", err)
	}

	first, ok := prog.BlockAt(0x1000)
	if !ok {
		t.Fatalf("no block at 0x1000")
	}
	if !first.Terminated() {
		t.Fatalf("block at 0x1000 is not terminated; forced split left no fallthrough jump")
	}
	j, ok := first.Last().(*ir.Jump)
	if !ok {
		t.Fatalf("block at 0x1000's last statement is %T, want *ir.Jump", first.Last())
	}
	if j.Then.Kind != ir.TargetBlock {
		t.Fatalf("synthesized jump target kind = %v, want TargetBlock", j.Then.Kind)
	}

	second, ok := prog.BlockAt(0x1005)
	if !ok {
		t.Fatalf("no block at 0x1005 (forced split point)")
	}
	if j.Then.Block != second {
		t.Errorf("synthesized jump targets %v, want the split block at 0x1005", j.Then.Block)
	}
}

func TestDecodeSectionNoForcedSplitLeavesSingleBlock(t *testing.T) {
	data := []byte{
		0xB8, 0x01, 0x00, 0x00, 0x00, // mov eax, 1
		0xC3, // ret
	}
	code := pe.Code{Addr: 0x2000, Data: data}

	prog := ir.NewProgram()
	b := build.NewBuilder(prog)
	if err := decodeSection(b, code, nil); err != nil {
		t.Fatalf("decodeSection: %v", err)
	}

	block, ok := prog.BlockAt(0x2000)
	if !ok {
		t.Fatalf("no block at 0x2000")
	}
	if len(block.Statements()) != 3 {
		t.Errorf("block has %d statements, want 3 (mov, ret's jump, ret's stack adjust)", len(block.Statements()))
	}
}
