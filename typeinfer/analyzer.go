package typeinfer

import (
	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

// Result is the resolved type facts for every term the analyzer walked,
// read out once unification has settled.
type Result struct {
	Types map[ir.Term]*Type

	vars map[ir.Term]*node
}

// TypeOf returns the resolved type for t, or nil if t was never walked.
func (r *Result) TypeOf(t ir.Term) *Type {
	n, ok := r.vars[t]
	if !ok {
		return nil
	}
	return n.find().t
}

// Analyzer walks one function's IR, generating and solving the unification
// constraints of spec.md §4.9.
type Analyzer struct {
	Function   *ir.Function
	Signatures *calling.Signatures
	Data       *dataflow.Result

	vars map[ir.Term]*node
}

// NewAnalyzer returns an analyzer for fn, consulting sigs for call/return
// unification and data for constant-offset recognition in pointer
// arithmetic.
func NewAnalyzer(fn *ir.Function, sigs *calling.Signatures, data *dataflow.Result) *Analyzer {
	return &Analyzer{Function: fn, Signatures: sigs, Data: data, vars: make(map[ir.Term]*node)}
}

// Run walks every statement of the function, generating and solving
// constraints, and returns the resolved per-term types.
func (a *Analyzer) Run() *Result {
	for _, b := range a.Function.Blocks() {
		for _, s := range b.Statements() {
			a.walkStatement(s)
		}
	}
	return &Result{Types: a.snapshot(), vars: a.vars}
}

func (a *Analyzer) snapshot() map[ir.Term]*Type {
	out := make(map[ir.Term]*Type, len(a.vars))
	for t, n := range a.vars {
		out[t] = n.find().t
	}
	return out
}

func (a *Analyzer) walkStatement(s ir.Statement) {
	switch v := s.(type) {
	case *ir.Assignment:
		unify(a.walkTerm(v.Left), a.walkTerm(v.Right))
	case *ir.Touch:
		a.walkTerm(v.Value)
	case *ir.Call:
		a.walkTerm(v.Target)
		a.unifyCallSignature(v)
	case *ir.Jump:
		if v.Condition != nil {
			a.walkTerm(v.Condition)
		}
	default:
		s.VisitChildTerms(func(t ir.Term) { a.walkTerm(t) })
	}
}

// walkTerm visits t's children first, then applies t's own constraints,
// returning its (possibly already-unified) type variable. Matches
// spec.md §4.9's constraint list; statement and term kinds with no
// specific rule of their own reach it through a VisitChildTerms callback.
func (a *Analyzer) walkTerm(t ir.Term) *node {
	if t == nil {
		return nil
	}
	if n, ok := a.vars[t]; ok {
		return n
	}
	n := newNode(t.Size())
	a.vars[t] = n

	switch v := t.(type) {
	case *ir.Dereference:
		addr := a.walkTerm(v.Address)
		root := addr.find()
		root.t.Pointer = true
		if root.t.Pointee == nil {
			root.t.Pointee = n
		} else {
			unify(root.t.Pointee, n)
		}
	case *ir.UnaryOp:
		arg := a.walkTerm(v.Arg)
		switch v.Op {
		case ir.UnarySignExtend:
			n.t.Sign = Signed
			r := arg.find()
			r.t.Sign = r.t.Sign.merge(Signed)
		case ir.UnaryZeroExtend:
			n.t.Sign = Unsigned
			r := arg.find()
			r.t.Sign = r.t.Sign.merge(Unsigned)
		}
	case *ir.BinaryOp:
		lhs := a.walkTerm(v.LHS)
		rhs := a.walkTerm(v.RHS)
		switch {
		case v.Op.IsCompare():
			merged := unify(lhs, rhs).find()
			if v.Op.IsSigned() {
				merged.t.Sign = merged.t.Sign.merge(Signed)
			} else if isUnsignedCompare(v.Op) {
				merged.t.Sign = merged.t.Sign.merge(Unsigned)
			}
		case v.Op == ir.BinaryAdd:
			a.tryPointerOffset(lhs, v.LHS, rhs, v.RHS, n)
			a.tryPointerOffset(rhs, v.RHS, lhs, v.LHS, n)
		}
	case *ir.Choice:
		pref := a.walkTerm(v.Preferred)
		def := a.walkTerm(v.Default)
		unify(n, unify(pref, def))
	default:
		t.VisitChildTerms(func(child ir.Term) { a.walkTerm(child) })
	}
	return n
}

// isUnsignedCompare reports whether op is one of the magnitude comparisons
// whose unsigned form forces unsigned typing (Eq/Ne carry no sign
// information either way).
func isUnsignedCompare(op ir.BinaryOpKind) bool {
	switch op {
	case ir.BinaryULt, ir.BinaryULe, ir.BinaryUGt, ir.BinaryUGe:
		return true
	}
	return false
}

// tryPointerOffset records ptr+off as a struct-recovery offset into ptr's
// pointee type when ptr is already known to be a pointer and off resolves
// to a known small constant in the dataflow result (spec.md §4.9: "the
// result inherits the pointer, and the integer is recorded as an offset
// into the pointee").
func (a *Analyzer) tryPointerOffset(ptr *node, ptrTerm ir.Term, off *node, offTerm ir.Term, result *node) {
	root := ptr.find()
	if !root.t.Pointer {
		return
	}
	if a.Data == nil {
		return
	}
	val, ok := a.Data.Values[offTerm]
	if !ok {
		return
	}
	c, ok := val.ConcreteValue()
	if !ok {
		return
	}
	root.t.Pointer = true
	resultRoot := result.find()
	resultRoot.t.Pointer = true
	pointee := offsetVar(root, int64(c))
	if resultRoot.t.Pointee == nil {
		resultRoot.t.Pointee = pointee
	} else {
		unify(resultRoot.t.Pointee, pointee)
	}
}

// unifyCallSignature unifies the call's resolved argument and return-value
// terms with the caller-side terms occupying the same memory locations
// around the call (spec.md §4.9: "unify argument terms with the
// signature's formal argument terms, likewise return values"). Matching is
// by location anywhere in the function rather than precisely at the call's
// own reaching-definitions snapshot, since that snapshot is consumed by
// signature analysis and not re-exposed here.
func (a *Analyzer) unifyCallSignature(call *ir.Call) {
	if a.Signatures == nil || a.Data == nil {
		return
	}
	sig, ok := a.Signatures.CallSignature(call)
	if !ok {
		return
	}
	for _, arg := range sig.Arguments {
		la, ok := arg.(*ir.LocationAccess)
		if !ok {
			continue
		}
		a.unifyLocation(la.Location, a.walkTerm(arg))
	}
	if sig.ReturnValue != nil {
		if la, ok := sig.ReturnValue.(*ir.LocationAccess); ok {
			a.unifyLocation(la.Location, a.walkTerm(sig.ReturnValue))
		}
	}
}

// unifyLocation unifies want's type variable with every tracked term whose
// resolved memory location matches loc.
func (a *Analyzer) unifyLocation(loc ir.MemoryLocation, want *node) {
	for t, l := range a.Data.Locations {
		if l != loc {
			continue
		}
		unify(want, a.walkTerm(t))
	}
}
