package signature

import (
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

// PublishCallSignatures derives and installs each call's CallSignature from
// its resolved callee's FunctionSignature, once Run has converged (spec.md
// §4.6: "each call's signature reuses the callee's formal argument list and
// appends its extras; its return value mirrors the callee's").
func (a *Analyzer) PublishCallSignatures() {
	for _, ci := range a.Calls {
		if !ci.CalleeID.IsValid() {
			continue
		}
		sig, ok := a.Signatures.FunctionSignature(ci.CalleeID)
		if !ok {
			continue
		}
		callSig := &calling.CallSignature{
			Arguments:   cloneTerms(sig.Arguments),
			ReturnValue: cloneTerm(sig.ReturnValue),
		}
		if sig.Variadic {
			callSig.Extra = extraArguments(ci, sig, a.Convention)
		}
		a.Signatures.SetCallSignature(ci.Stmt, callSig)
	}
}

// extraArguments returns the locations this call supplied beyond the
// callee's formal argument list, as fresh location-access terms.
func extraArguments(ci *CallInfo, sig *calling.FunctionSignature, conv *calling.Convention) []ir.Term {
	formal := make(map[ir.MemoryLocation]bool, len(sig.Arguments))
	for _, arg := range sig.Arguments {
		if la, ok := arg.(*ir.LocationAccess); ok {
			formal[la.Location] = true
		}
	}
	var extra []ir.Term
	for _, loc := range unusedSnapshotLocations(ci) {
		cand, ok := conv.GetArgumentLocationCovering(loc)
		if !ok || formal[cand] {
			continue
		}
		formal[cand] = true
		extra = append(extra, ir.NewLocationAccess(cand))
	}
	return extra
}

func cloneTerms(terms []ir.Term) []ir.Term {
	if terms == nil {
		return nil
	}
	out := make([]ir.Term, len(terms))
	for i, t := range terms {
		out[i] = ir.CloneTerm(t)
	}
	return out
}

func cloneTerm(t ir.Term) ir.Term {
	if t == nil {
		return nil
	}
	return ir.CloneTerm(t)
}
