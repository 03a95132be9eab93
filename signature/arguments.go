package signature

import (
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
	"github.com/mewmew/nc/dataflow"
)

// inferArguments applies spec.md §4.6's per-id argument inference and
// installs an updated FunctionSignature if the result differs from what is
// currently recorded. Reports whether it changed anything.
func (a *Analyzer) inferArguments(id ir.CalleeID, g *referrers) bool {
	bodyLocs := undefinedUseLocations(g.funcs, a.Convention)
	agreed, callLocs := callAgreedLocations(g.calls, a.Convention)

	locSet := make(map[ir.MemoryLocation]bool)
	for loc := range bodyLocs {
		locSet[loc] = true
	}
	if len(bodyLocs) == 0 {
		for loc := range agreed {
			locSet[loc] = true
		}
	}

	variadic := false
	if len(g.calls) > 0 {
		for loc := range callLocs {
			if !locSet[loc] {
				variadic = true
				break
			}
		}
	}

	locs := make([]ir.MemoryLocation, 0, len(locSet))
	for loc := range locSet {
		locs = append(locs, loc)
	}
	sorted := a.Convention.SortArguments(locs)

	args := make([]ir.Term, len(sorted))
	for i, loc := range sorted {
		args[i] = ir.NewLocationAccess(loc)
	}

	newSig := &calling.FunctionSignature{Arguments: args, Variadic: variadic}
	sig, _ := a.Signatures.FunctionSignature(id)
	if sig != nil && sameLocations(sig.Arguments, newSig.Arguments) && sig.Variadic == newSig.Variadic {
		return false
	}
	a.Signatures.SetFunctionSignature(id, newSig)
	return true
}

// undefinedUseLocations collects the argument-candidate locations read
// with no reaching definition inside any of funcs (spec.md §4.6 step 1,
// first clause).
func undefinedUseLocations(funcs []*FunctionInfo, conv *calling.Convention) map[ir.MemoryLocation]bool {
	out := make(map[ir.MemoryLocation]bool)
	for _, fi := range funcs {
		for t, defs := range fi.Result.UseDefs {
			if len(defs) != 0 {
				continue
			}
			loc, ok := fi.Result.Locations[t]
			if !ok {
				continue
			}
			cand, ok := conv.GetArgumentLocationCovering(loc)
			if !ok {
				continue
			}
			out[cand] = true
		}
	}
	return out
}

// callAgreedLocations returns the argument-candidate locations shared by
// every call's unused-snapshot-definitions set (spec.md §4.6 steps 2-3,
// "all calls agree on the same stack/register location"), plus the full set
// of locations any single call proposed (used by the caller to detect
// extra, per-call arguments).
func callAgreedLocations(calls []*CallInfo, conv *calling.Convention) (map[ir.MemoryLocation]bool, map[ir.MemoryLocation]bool) {
	all := make(map[ir.MemoryLocation]bool)
	var perCall []map[ir.MemoryLocation]bool
	for _, ci := range calls {
		locs := unusedSnapshotLocations(ci)
		cands := make(map[ir.MemoryLocation]bool)
		for _, loc := range locs {
			if cand, ok := conv.GetArgumentLocationCovering(loc); ok {
				cands[cand] = true
				all[cand] = true
			}
		}
		perCall = append(perCall, cands)
	}

	agreed := make(map[ir.MemoryLocation]bool)
	for cand := range all {
		inEvery := true
		for _, cands := range perCall {
			if !cands[cand] {
				inEvery = false
				break
			}
		}
		if inEvery {
			agreed[cand] = true
		}
	}
	return agreed, all
}

// unusedSnapshotLocations returns the locations defined (in the caller)
// before ci's call whose definition is never subsequently read anywhere in
// the caller (spec.md §4.6 step 2): candidates for "this is an argument the
// callee consumed, and nothing after the call needed it".
func unusedSnapshotLocations(ci *CallInfo) []ir.MemoryLocation {
	if ci.Snapshot == nil {
		return nil
	}
	snap, ok := ci.Caller.Result.Snapshots[ci.Snapshot]
	if !ok {
		return nil
	}
	var out []ir.MemoryLocation
	for _, loc := range snap.Locations() {
		if !isUsedAnywhere(ci.Caller.Result, snap.Project(loc)) {
			out = append(out, loc)
		}
	}
	return out
}

func isUsedAnywhere(res *dataflow.Result, defs []ir.Term) bool {
	for _, usedDefs := range res.UseDefs {
		for _, d := range usedDefs {
			for _, target := range defs {
				if d == target {
					return true
				}
			}
		}
	}
	return false
}

func sameLocations(a, b []ir.Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		la, aok := a[i].(*ir.LocationAccess)
		lb, bok := b[i].(*ir.LocationAccess)
		if !aok || !bok || la.Location != lb.Location {
			return false
		}
	}
	return true
}
