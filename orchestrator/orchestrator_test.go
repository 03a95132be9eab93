package orchestrator

import (
	"testing"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

func TestCalleeIDOfDistinguishesEntrylessFunctions(t *testing.T) {
	fn1 := ir.NewFunction(ir.NewSyntheticBlock())
	fn2 := ir.NewFunction(ir.NewSyntheticBlock())

	id1 := calleeIDOf(fn1, 0)
	id2 := calleeIDOf(fn2, 1)

	if id1 == id2 {
		t.Fatalf("two distinct entry-less functions got the same callee id %v", id1)
	}
}

func TestCalleeIDOfUsesEntryAddress(t *testing.T) {
	addr := bin.Addr(0x4000)
	block := ir.NewBasicBlock(addr)
	fn := ir.NewFunction(block)

	got := calleeIDOf(fn, 0)
	want := ir.EntryCalleeID(addr)
	if got != want {
		t.Errorf("calleeIDOf(fn with entry addr) = %v, want %v", got, want)
	}
}
