package calling

import (
	"sort"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

// SortArguments returns locations in canonical calling order (spec.md
// §4.4): groups are walked in declared order, appending the candidates
// matched by some input location and stopping at the first unmatched
// candidate in that group; stack arguments are appended afterwards only if
// at least one group matched in full (or the convention declares none),
// ordered by address and stopping at the first gap in the alignment
// stride.
func (c *Convention) SortArguments(locations []ir.MemoryLocation) []ir.MemoryLocation {
	var out []ir.MemoryLocation
	anyGroupFullyMatched := len(c.ArgumentGroups) == 0

	for _, group := range c.ArgumentGroups {
		fullyMatched := true
		for _, cand := range group.Candidates {
			if !matchedBySome(cand, locations) {
				fullyMatched = false
				break
			}
			out = append(out, cand.Canonical())
		}
		if fullyMatched {
			anyGroupFullyMatched = true
		}
	}

	if anyGroupFullyMatched {
		out = append(out, c.sortedStackArguments(locations)...)
	}
	return out
}

func matchedBySome(cand ArgumentCandidate, locations []ir.MemoryLocation) bool {
	for _, loc := range locations {
		if cand.Covers(loc) {
			return true
		}
	}
	return false
}

// sortedStackArguments returns the stack-domain locations among locations,
// sorted by address, truncated at the first gap in the argument-alignment
// stride.
func (c *Convention) sortedStackArguments(locations []ir.MemoryLocation) []ir.MemoryLocation {
	var stack []ir.MemoryLocation
	for _, loc := range locations {
		if loc.Domain == ir.DomainStack && loc.BitOffset >= c.FirstArgumentOffset {
			stack = append(stack, loc)
		}
	}
	sort.Slice(stack, func(i, j int) bool { return stack[i].BitOffset < stack[j].BitOffset })

	var out []ir.MemoryLocation
	for i, loc := range stack {
		if i == 0 {
			out = append(out, loc)
			continue
		}
		prev := out[len(out)-1]
		if loc.BitOffset == prev.BitOffset+bin.BitAddr(c.ArgumentAlignment) {
			out = append(out, loc)
			continue
		}
		break
	}
	return out
}
