package signature

import (
	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

// inferReturnValue applies spec.md §4.6's weighted poll over
// convention-candidate return locations and installs an updated return
// value if the winner changed. Reports whether it changed anything.
func (a *Analyzer) inferReturnValue(id ir.CalleeID, g *referrers) bool {
	weights := make(map[ir.MemoryLocation]int64)
	voted := false

	for _, ci := range g.calls {
		for i, sp := range ci.SpeculativeReturns {
			if i >= len(a.Convention.ReturnCandidates) || sp == nil {
				continue
			}
			cand := a.Convention.ReturnCandidates[i]
			for use, defs := range ci.Caller.Result.UseDefs {
				if !containsTerm(defs, sp) {
					continue
				}
				loc := ci.Caller.Result.Locations[use]
				weights[cand] += int64(loc.BitSize)
				voted = true
			}
		}
	}

	if !voted {
		for _, ri := range g.returns {
			for _, cand := range a.Convention.ReturnCandidates {
				if isUnusedWrite(ri.Func.Result, cand) {
					weights[cand]++
					voted = true
				}
			}
		}
	}

	var winner ir.MemoryLocation
	var best int64
	found := false
	for _, cand := range a.Convention.ReturnCandidates {
		w := weights[cand]
		if w > best || (!found && w > 0) {
			best = w
			winner = cand
			found = true
		}
	}

	var rv ir.Term
	if found {
		rv = ir.NewLocationAccess(winner)
	}

	sig, _ := a.Signatures.FunctionSignature(id)
	if sig == nil {
		sig = &calling.FunctionSignature{}
	}
	if sameReturnValue(sig.ReturnValue, rv) {
		return false
	}
	updated := *sig
	updated.ReturnValue = rv
	a.Signatures.SetFunctionSignature(id, &updated)
	return true
}

func containsTerm(haystack []ir.Term, needle ir.Term) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

// isUnusedWrite reports whether cand was written somewhere in res's
// function but that write is never read anywhere else in it (spec.md
// §4.6's fallback poll: "return jumps' unused writes").
func isUnusedWrite(res *dataflow.Result, cand ir.MemoryLocation) bool {
	for t, loc := range res.Locations {
		if loc != cand || t.Role() != ir.RoleWrite {
			continue
		}
		used := false
		for _, defs := range res.UseDefs {
			if containsTerm(defs, t) {
				used = true
				break
			}
		}
		if !used {
			return true
		}
	}
	return false
}

func sameReturnValue(a, b ir.Term) bool {
	la, aok := a.(*ir.LocationAccess)
	lb, bok := b.(*ir.LocationAccess)
	switch {
	case a == nil && b == nil:
		return true
	case aok && bok:
		return la.Location == lb.Location
	default:
		return false
	}
}
