package variable

import (
	"testing"

	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
)

func TestRecoverIncludesGlobalVariables(t *testing.T) {
	fn := ir.NewFunction(ir.NewBasicBlock(0x1000))
	global := NewIndex()

	loc := ir.MemoryLocation{Domain: ir.DomainMemory, BitOffset: 0x8000, BitSize: 32}
	term := ir.NewLocationAccess(loc)
	result := &dataflow.Result{Locations: map[ir.Term]ir.MemoryLocation{term: loc}}

	vars := Recover(fn, result, global)
	if len(vars) != 1 {
		t.Fatalf("Recover returned %d variables, want 1 (the global the function referenced)", len(vars))
	}
	if !vars[0].Location.Overlaps(loc) {
		t.Errorf("recovered variable location = %v, want one overlapping %v", vars[0].Location, loc)
	}
}

func TestRecoverSharesGlobalAcrossFunctions(t *testing.T) {
	global := NewIndex()
	loc := ir.MemoryLocation{Domain: ir.DomainMemory, BitOffset: 0x8000, BitSize: 32}

	fn1 := ir.NewFunction(ir.NewBasicBlock(0x1000))
	term1 := ir.NewLocationAccess(loc)
	vars1 := Recover(fn1, &dataflow.Result{Locations: map[ir.Term]ir.MemoryLocation{term1: loc}}, global)

	fn2 := ir.NewFunction(ir.NewBasicBlock(0x2000))
	term2 := ir.NewLocationAccess(loc)
	vars2 := Recover(fn2, &dataflow.Result{Locations: map[ir.Term]ir.MemoryLocation{term2: loc}}, global)

	if len(vars1) != 1 || len(vars2) != 1 {
		t.Fatalf("got %d and %d variables, want 1 each", len(vars1), len(vars2))
	}
	if vars1[0] != vars2[0] {
		t.Errorf("the same global location recovered from two functions produced different *Variable values, want the shared one")
	}
}

func TestRecoverMergesOverlappingLocals(t *testing.T) {
	fn := ir.NewFunction(ir.NewBasicBlock(0x1000))
	global := NewIndex()

	wide := ir.MemoryLocation{Domain: ir.FirstRegisterDomain, BitOffset: 0, BitSize: 32}
	narrow := ir.MemoryLocation{Domain: ir.FirstRegisterDomain, BitOffset: 0, BitSize: 8}
	tWide := ir.NewLocationAccess(wide)
	tNarrow := ir.NewLocationAccess(narrow)

	result := &dataflow.Result{Locations: map[ir.Term]ir.MemoryLocation{
		tWide:   wide,
		tNarrow: narrow,
	}}

	vars := Recover(fn, result, global)
	if len(vars) != 1 {
		t.Fatalf("Recover returned %d variables, want 1 (overlapping register aliases merge)", len(vars))
	}
	if len(vars[0].Terms) != 2 {
		t.Errorf("merged variable carries %d terms, want 2", len(vars[0].Terms))
	}
}
