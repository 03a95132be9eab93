// Package calling implements the calling-convention registry and the
// entry/call/return hook instrumentation it drives (spec.md §4.4).
package calling

import (
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

// ArgumentCandidate enumerates the aliased sub-locations of one candidate
// argument slot at differing widths (e.g. eax/ax/al), widest first. The
// widest location is the candidate's canonical identity.
type ArgumentCandidate struct {
	Locations []ir.MemoryLocation
}

// Canonical returns the candidate's widest aliased location.
func (c ArgumentCandidate) Canonical() ir.MemoryLocation {
	return c.Locations[0]
}

// Covers reports whether any aliased width of c covers loc.
func (c ArgumentCandidate) Covers(loc ir.MemoryLocation) bool {
	for _, l := range c.Locations {
		if l.Covers(loc) {
			return true
		}
	}
	return false
}

// ArgumentGroup models one argument class (e.g. integer vs. float
// registers). Candidates are checked in declared order.
type ArgumentGroup struct {
	Candidates []ArgumentCandidate
}

// Convention is an immutable description of an ABI: where the stack pointer
// and arguments live, how the return value is communicated, and what
// statements execute semantically on function entry. Conventions carry no
// methods beyond pure queries (spec.md §9): there is no call for
// polymorphism here, only data plus the two operations below.
type Convention struct {
	// Name identifies the convention for logging and hook-cache keys.
	Name string
	// StackPointer is the location holding the current stack pointer.
	StackPointer ir.MemoryLocation
	// FirstArgumentOffset is the bit offset, within the stack domain, of
	// the first stack-passed argument.
	FirstArgumentOffset bin.BitAddr
	// ArgumentAlignment is the bit alignment of successive stack
	// arguments.
	ArgumentAlignment bin.BitSize
	// ArgumentGroups are the ordered candidate-location groups checked by
	// GetArgumentLocationCovering and SortArguments.
	ArgumentGroups []ArgumentGroup
	// ReturnCandidates are the candidate return-value locations, in
	// priority order.
	ReturnCandidates []ir.MemoryLocation
	// CalleeCleanup reports whether the callee pops its own stack
	// arguments.
	CalleeCleanup bool
	// EntryStatements execute semantically on function entry (e.g. "clear
	// the direction flag"); cloned into every entry hook.
	EntryStatements []ir.Statement
}

// GetArgumentLocationCovering returns the convention-recognized argument
// location covering loc, and whether one was found.
//
// A stack location at or beyond FirstArgumentOffset is always recognized:
// it is rounded down/up to the alignment grid. Otherwise the first
// declared candidate (across all groups, in declared order) that covers
// loc is returned.
func (c *Convention) GetArgumentLocationCovering(loc ir.MemoryLocation) (ir.MemoryLocation, bool) {
	if loc.Domain == ir.DomainStack && loc.BitOffset >= c.FirstArgumentOffset {
		return c.alignStackLocation(loc), true
	}
	for _, group := range c.ArgumentGroups {
		for _, cand := range group.Candidates {
			if cand.Covers(loc) {
				return cand.Canonical(), true
			}
		}
	}
	return ir.MemoryLocation{}, false
}

// alignStackLocation rounds loc down and up to the convention's stack
// argument alignment grid.
func (c *Convention) alignStackLocation(loc ir.MemoryLocation) ir.MemoryLocation {
	align := int64(c.ArgumentAlignment)
	if align <= 0 {
		align = 1
	}
	start := (int64(loc.BitOffset) / align) * align
	end := int64(loc.BitOffset) + int64(loc.BitSize)
	end = ((end + align - 1) / align) * align
	return ir.MemoryLocation{Domain: ir.DomainStack, BitOffset: bin.BitAddr(start), BitSize: bin.BitSize(end - start)}
}
