package dataflow

import "github.com/mewmew/nc/ir"

// defEntry pairs an exact memory location with the set of terms currently
// defining it.
type defEntry struct {
	loc  ir.MemoryLocation
	defs map[ir.Term]bool
}

// ReachingDefs is a map from memory location to the set of terms that may
// have most recently written it along some control-flow path (spec.md
// §4.5). Locations are tracked at the exact granularity of their defining
// write; Project and Kill use overlap/coverage to answer queries at a
// different granularity than the original write.
type ReachingDefs struct {
	entries []defEntry
}

// NewReachingDefs returns an empty reaching-definitions set.
func NewReachingDefs() *ReachingDefs {
	return &ReachingDefs{}
}

// Clone returns a deep copy of r.
func (r *ReachingDefs) Clone() *ReachingDefs {
	c := &ReachingDefs{entries: make([]defEntry, len(r.entries))}
	for i, e := range r.entries {
		defs := make(map[ir.Term]bool, len(e.defs))
		for t := range e.defs {
			defs[t] = true
		}
		c.entries[i] = defEntry{loc: e.loc, defs: defs}
	}
	return c
}

func (r *ReachingDefs) find(loc ir.MemoryLocation) int {
	for i, e := range r.entries {
		if e.loc == loc {
			return i
		}
	}
	return -1
}

// Install kills prior definitions of loc and installs term as its sole
// defining term.
func (r *ReachingDefs) Install(loc ir.MemoryLocation, term ir.Term) {
	r.Kill(loc)
	r.entries = append(r.entries, defEntry{loc: loc, defs: map[ir.Term]bool{term: true}})
}

// Kill removes every definition whose location is covered by loc.
func (r *ReachingDefs) Kill(loc ir.MemoryLocation) {
	out := r.entries[:0]
	for _, e := range r.entries {
		if loc.Covers(e.loc) {
			continue
		}
		out = append(out, e)
	}
	r.entries = out
}

// Project restricts r to definitions whose location overlaps loc, and
// returns the union of the matching defining terms.
func (r *ReachingDefs) Project(loc ir.MemoryLocation) []ir.Term {
	var out []ir.Term
	for _, e := range r.entries {
		if e.loc.Overlaps(loc) {
			for t := range e.defs {
				out = append(out, t)
			}
		}
	}
	return out
}

// HasAny reports whether any definition overlaps loc.
func (r *ReachingDefs) HasAny(loc ir.MemoryLocation) bool {
	for _, e := range r.entries {
		if e.loc.Overlaps(loc) {
			return true
		}
	}
	return false
}

// Locations returns every exact location currently holding a definition.
func (r *ReachingDefs) Locations() []ir.MemoryLocation {
	out := make([]ir.MemoryLocation, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.loc
	}
	return out
}

// Join returns the pointwise union of r and other: for each exact location
// tracked in either, the union of its defining terms.
func Join(r, other *ReachingDefs) *ReachingDefs {
	out := r.Clone()
	for _, e := range other.entries {
		i := out.find(e.loc)
		if i < 0 {
			defs := make(map[ir.Term]bool, len(e.defs))
			for t := range e.defs {
				defs[t] = true
			}
			out.entries = append(out.entries, defEntry{loc: e.loc, defs: defs})
			continue
		}
		for t := range e.defs {
			out.entries[i].defs[t] = true
		}
	}
	return out
}

// Equal reports whether r and other track the same locations with the same
// defining terms, used to detect fixpoint convergence.
func (r *ReachingDefs) Equal(other *ReachingDefs) bool {
	if len(r.entries) != len(other.entries) {
		return false
	}
	for _, e := range r.entries {
		i := other.find(e.loc)
		if i < 0 || len(other.entries[i].defs) != len(e.defs) {
			return false
		}
		for t := range e.defs {
			if !other.entries[i].defs[t] {
				return false
			}
		}
	}
	return true
}
