package ir

import (
	"fmt"

	"github.com/mewmew/nc/bin"
)

// MemoryLocation is the lingua franca of dataflow: a triple identifying some
// abstract storage unit. Two locations with the same domain, bit offset and
// bit size name the same storage.
//
// Equality and ordering are lexicographic over (Domain, BitOffset, BitSize).
type MemoryLocation struct {
	// Domain partitions the abstract address space (main memory, the
	// current stack frame, a register, ...).
	Domain Domain
	// BitOffset is the offset of the region, in bits, within Domain.
	BitOffset bin.BitAddr
	// BitSize is the width of the region, in bits. Always > 0 for a valid
	// location; the zero value is the sentinel "no location".
	BitSize bin.BitSize
}

// NoLocation is the sentinel value meaning "term has no associated memory
// location" (e.g. a constant, an intrinsic, the result of an arithmetic
// operator).
var NoLocation = MemoryLocation{}

// IsValid reports whether loc names an actual storage unit.
func (loc MemoryLocation) IsValid() bool {
	return loc.BitSize > 0
}

// String returns a debug representation of loc.
func (loc MemoryLocation) String() string {
	if !loc.IsValid() {
		return "<no location>"
	}
	return fmt.Sprintf("domain%d[%d:%d]", loc.Domain, loc.BitOffset, loc.BitOffset+bin.BitAddr(loc.BitSize))
}

// Less implements the lexicographic ordering over (Domain, BitOffset, BitSize).
func (loc MemoryLocation) Less(other MemoryLocation) bool {
	if loc.Domain != other.Domain {
		return loc.Domain < other.Domain
	}
	if loc.BitOffset != other.BitOffset {
		return loc.BitOffset < other.BitOffset
	}
	return loc.BitSize < other.BitSize
}

// end returns the exclusive upper bound, in bits, of loc within its domain.
func (loc MemoryLocation) end() bin.BitAddr {
	return loc.BitOffset + bin.BitAddr(loc.BitSize)
}

// Covers reports whether loc entirely contains other: same domain, and
// other's bit range is a subset of loc's.
func (loc MemoryLocation) Covers(other MemoryLocation) bool {
	if loc.Domain != other.Domain {
		return false
	}
	return loc.BitOffset <= other.BitOffset && other.end() <= loc.end()
}

// Overlaps reports whether loc and other share any bit, in the same domain.
func (loc MemoryLocation) Overlaps(other MemoryLocation) bool {
	if loc.Domain != other.Domain {
		return false
	}
	return loc.BitOffset < other.end() && other.BitOffset < loc.end()
}

// Shifted returns loc translated by delta bits within the same domain.
func (loc MemoryLocation) Shifted(delta bin.BitAddr) MemoryLocation {
	loc.BitOffset += delta
	return loc
}

// Resized returns loc with its width changed to size, offset unchanged.
func (loc MemoryLocation) Resized(size bin.BitSize) MemoryLocation {
	loc.BitSize = size
	return loc
}

// Merge returns the smallest location in the shared domain covering both loc
// and other. Panics if the domains differ; callers are expected to check
// domains first (mirrors the "same domain" precondition used throughout
// dataflow, §4.5).
func (loc MemoryLocation) Merge(other MemoryLocation) MemoryLocation {
	if loc.Domain != other.Domain {
		panic(fmt.Sprintf("ir: cannot merge locations from different domains (%d, %d)", loc.Domain, other.Domain))
	}
	start := loc.BitOffset
	if other.BitOffset < start {
		start = other.BitOffset
	}
	stop := loc.end()
	if other.end() > stop {
		stop = other.end()
	}
	return MemoryLocation{Domain: loc.Domain, BitOffset: start, BitSize: bin.BitSize(stop - start)}
}

// Intersect returns the overlapping region of loc and other, and whether one
// exists (same domain and overlapping ranges).
func (loc MemoryLocation) Intersect(other MemoryLocation) (MemoryLocation, bool) {
	if loc.Domain != other.Domain {
		return MemoryLocation{}, false
	}
	start := loc.BitOffset
	if other.BitOffset > start {
		start = other.BitOffset
	}
	stop := loc.end()
	if other.end() < stop {
		stop = other.end()
	}
	if start >= stop {
		return MemoryLocation{}, false
	}
	return MemoryLocation{Domain: loc.Domain, BitOffset: start, BitSize: bin.BitSize(stop - start)}, true
}
