package calling

import "github.com/mewmew/nc/ir"

// EntryHookResult is the patch built by BuildEntryHook plus the mapping a
// code generator needs from a signature argument term's identity to the
// cloned local term the hook actually wrote, per spec.md §4.4.
type EntryHookResult struct {
	Patch     *Patch
	ArgLocals map[ir.Term]ir.Term
}

// BuildEntryHook builds the statements prepended to a function's entry
// block: the stack pointer is assigned the zero-stack-offset intrinsic, the
// convention's entry statements are cloned in, and — if sig is non-nil —
// each of its argument terms is cloned and written with the undefined
// intrinsic, so downstream dataflow sees "argument defined here, value
// unknown".
func BuildEntryHook(conv *Convention, sig *FunctionSignature) *EntryHookResult {
	var stmts []ir.Statement
	spWrite := ir.NewLocationAccess(conv.StackPointer)
	stmts = append(stmts, ir.NewAssignment(spWrite, ir.NewIntrinsic(ir.IntrinsicZeroStackOffset, conv.StackPointer.BitSize)))

	for _, es := range conv.EntryStatements {
		stmts = append(stmts, es.Clone())
	}

	argLocals := make(map[ir.Term]ir.Term)
	if sig != nil {
		for _, arg := range sig.Arguments {
			local := ir.CloneTerm(arg)
			stmts = append(stmts, ir.NewAssignment(local, ir.NewIntrinsic(ir.IntrinsicUndefined, local.Size())))
			argLocals[arg] = local
		}
	}
	return &EntryHookResult{Patch: NewPatch(stmts), ArgLocals: argLocals}
}

// CallHookResult is the patch built by BuildCallHook plus, when no
// signature was known, the speculative return-value write terms the
// signature analyzer keys back to the callee id (spec.md §4.6).
type CallHookResult struct {
	Patch                 *Patch
	SpeculativeReturns    []ir.Term
	RememberReachingDefs  *ir.RememberReachingDefs
}

// BuildCallHook builds the statements inserted after a call: a read of the
// stack pointer; if sig is non-nil, a read of each argument term and a
// write of undefined to the return-value term; otherwise a
// remember-reaching-definitions snapshot plus a speculative undefined write
// to every convention-candidate return location. If conv is callee-cleanup
// and stackArgSize is known, a stack-pointer adjustment is appended.
func BuildCallHook(conv *Convention, sig *CallSignature, stackArgSize *int64) *CallHookResult {
	var stmts []ir.Statement
	stmts = append(stmts, ir.NewTouch(ir.NewLocationAccess(conv.StackPointer), ir.RoleRead))

	res := &CallHookResult{}
	if sig != nil {
		for _, arg := range sig.Arguments {
			stmts = append(stmts, ir.NewTouch(ir.CloneTerm(arg), ir.RoleRead))
		}
		for _, extra := range sig.Extra {
			stmts = append(stmts, ir.NewTouch(ir.CloneTerm(extra), ir.RoleRead))
		}
		if sig.ReturnValue != nil {
			rv := ir.CloneTerm(sig.ReturnValue)
			stmts = append(stmts, ir.NewAssignment(rv, ir.NewIntrinsic(ir.IntrinsicUndefined, rv.Size())))
		}
	} else {
		snap := ir.NewRememberReachingDefs()
		stmts = append(stmts, snap)
		res.RememberReachingDefs = snap
		for _, cand := range conv.ReturnCandidates {
			rv := ir.NewLocationAccess(cand)
			stmts = append(stmts, ir.NewAssignment(rv, ir.NewIntrinsic(ir.IntrinsicUndefined, cand.BitSize)))
			res.SpeculativeReturns = append(res.SpeculativeReturns, rv)
		}
	}

	if conv.CalleeCleanup && stackArgSize != nil {
		sp := ir.NewLocationAccess(conv.StackPointer)
		size := conv.StackPointer.BitSize
		adjusted := ir.NewBinaryOp(ir.BinaryAdd, ir.NewLocationAccess(conv.StackPointer),
			ir.NewConstant(uint64(*stackArgSize), size), size)
		stmts = append(stmts, ir.NewAssignment(sp, adjusted))
	}

	res.Patch = NewPatch(stmts)
	return res
}

// BuildReturnHook builds the statement inserted before a return jump: a read
// of the signature's return value if sig is non-nil and declares one, else
// a read of every convention-candidate return location.
func BuildReturnHook(conv *Convention, sig *FunctionSignature) *Patch {
	var stmts []ir.Statement
	if sig != nil && sig.ReturnValue != nil {
		stmts = append(stmts, ir.NewTouch(ir.CloneTerm(sig.ReturnValue), ir.RoleRead))
	} else {
		for _, cand := range conv.ReturnCandidates {
			stmts = append(stmts, ir.NewTouch(ir.NewLocationAccess(cand), ir.RoleRead))
		}
	}
	return NewPatch(stmts)
}
