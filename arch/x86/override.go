package x86

import (
	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
)

// FPUOverride forces reads of the x87 top-of-stack pseudo-register to a
// concrete zero (spec.md §4.5's example): nothing in this module's lifted
// IR ever pushes or pops the x87 stack, so every FPU instruction addresses
// ST(0) directly and "top" never actually moves.
type FPUOverride struct{}

// EvalTerm implements dataflow.Override.
func (FPUOverride) EvalTerm(a *dataflow.Analyzer, t ir.Term, pre *dataflow.ReachingDefs) (dataflow.AbstractValue, bool) {
	la, ok := t.(*ir.LocationAccess)
	if !ok || la.Location.Domain != FPUTopDomain {
		return dataflow.AbstractValue{}, false
	}
	return dataflow.FromConstant(0, la.Location.BitSize), true
}
