package x86

import (
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

// gpCandidate builds a widest-first ArgumentCandidate spanning a single
// register family's 64/32/16/8-bit aliases, used to recognize an argument
// written at any width to the same physical register (spec.md §4.4).
func gpCandidate(fam int) calling.ArgumentCandidate {
	return calling.ArgumentCandidate{Locations: []ir.MemoryLocation{
		famLoc(fam, 64), famLoc(fam, 32), famLoc(fam, 16), famLoc(fam, 8),
	}}
}

func group(fams ...int) calling.ArgumentGroup {
	g := calling.ArgumentGroup{}
	for _, fam := range fams {
		g.Candidates = append(g.Candidates, gpCandidate(fam))
	}
	return g
}

// entryStatements returns no statements: the direction flag is not modeled
// as a location in this package, so no "clear DF" entry statement is
// emitted. String-instruction lifting instead assumes DF is clear
// (spec.md's cmps/movs Open Question).
func entryStatements() []ir.Statement {
	return nil
}

// Cdecl is the x86 (32-bit) C calling convention: all arguments on the
// stack, caller cleans up, eax (or its 64-bit rax alias) carries the return
// value.
func Cdecl() *calling.Convention {
	return &calling.Convention{
		Name:                "cdecl",
		StackPointer:        famLoc(famSP, 32),
		FirstArgumentOffset: 32, // first stack slot is past the saved return address
		ArgumentAlignment:   32,
		ReturnCandidates:    []ir.MemoryLocation{famLoc(famA, 32), famLoc(famA, 64)},
		CalleeCleanup:       false,
		EntryStatements:     entryStatements(),
	}
}

// Stdcall is cdecl's sibling: same stack layout, but the callee pops its
// own arguments.
func Stdcall() *calling.Convention {
	c := Cdecl()
	c.Name = "stdcall"
	c.CalleeCleanup = true
	return c
}

// Fastcall passes its first two integer arguments in ecx/edx, the rest on
// the stack.
func Fastcall() *calling.Convention {
	return &calling.Convention{
		Name:                "fastcall",
		StackPointer:        famLoc(famSP, 32),
		FirstArgumentOffset: 32,
		ArgumentAlignment:   32,
		ArgumentGroups: []calling.ArgumentGroup{
			group(famC),
			group(famD),
		},
		ReturnCandidates: []ir.MemoryLocation{famLoc(famA, 32), famLoc(famA, 64)},
		CalleeCleanup:    true,
		EntryStatements:  entryStatements(),
	}
}

// MicrosoftX64 is the Windows x64 convention: rcx/rdx/r8/r9 carry the first
// four integer arguments, the rest spill to the stack above a 32-byte
// shadow space, and the caller always cleans up.
func MicrosoftX64() *calling.Convention {
	return &calling.Convention{
		Name:                "ms_x64",
		StackPointer:        famLoc(famSP, 64),
		FirstArgumentOffset: bin.BitAddr(64 + 32*8), // return address + 32-byte shadow space
		ArgumentAlignment:   64,
		ArgumentGroups: []calling.ArgumentGroup{
			group(famC),
			group(famD),
			group(famR8),
			group(famR9),
		},
		ReturnCandidates: []ir.MemoryLocation{famLoc(famA, 64), famLoc(famA, 32)},
		CalleeCleanup:    false,
		EntryStatements:  entryStatements(),
	}
}
