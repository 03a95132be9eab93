package dataflow

import (
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

// resolveLocation implements the term → memory-location resolution rules of
// spec.md §4.5.
func (a *Analyzer) resolveLocation(t ir.Term, pre *ReachingDefs) (ir.MemoryLocation, bool) {
	switch v := t.(type) {
	case *ir.Constant, *ir.Intrinsic:
		return ir.MemoryLocation{}, false
	case *ir.LocationAccess:
		return v.Location, true
	case *ir.Dereference:
		addr := a.eval(v.Address, pre)
		// Stack offsets and addresses count bytes; location offsets count bits.
		if off := addr.StackOffset; off != nil {
			return ir.MemoryLocation{Domain: ir.DomainStack, BitOffset: bin.BitAddr(*off) * 8, BitSize: v.Size()}, true
		}
		if concrete, ok := addr.ConcreteValue(); ok {
			return ir.MemoryLocation{Domain: ir.DomainMemory, BitOffset: bin.BitAddr(concrete) * 8, BitSize: v.Size()}, true
		}
		return ir.MemoryLocation{}, false
	case *ir.UnaryOp, *ir.BinaryOp:
		return ir.MemoryLocation{}, false
	case *ir.Choice:
		pl, pok := a.resolveLocation(v.Preferred, pre)
		dl, dok := a.resolveLocation(v.Default, pre)
		if pok && dok && pl == dl {
			return pl, true
		}
		return ir.MemoryLocation{}, false
	default:
		return ir.MemoryLocation{}, false
	}
}

// eval computes t's abstract value against the pre-state reaching it,
// applying the architecture override (if any) first.
func (a *Analyzer) eval(t ir.Term, pre *ReachingDefs) AbstractValue {
	if a.Override != nil {
		if v, ok := a.Override.EvalTerm(a, t, pre); ok {
			return v
		}
	}
	switch v := t.(type) {
	case *ir.Constant:
		return FromConstant(v.Value, v.Size())
	case *ir.Intrinsic:
		switch v.Kind {
		case ir.IntrinsicZeroStackOffset:
			return StackOffsetValue(0, v.Size())
		default:
			return Top(v.Size())
		}
	case *ir.LocationAccess:
		return a.valueAt(v.Location, pre)
	case *ir.Dereference:
		loc, ok := a.resolveLocation(v, pre)
		if !ok {
			return Top(v.Size())
		}
		return a.valueAt(loc, pre)
	case *ir.UnaryOp:
		return a.evalUnary(v, pre)
	case *ir.BinaryOp:
		return a.evalBinary(v, pre)
	case *ir.Choice:
		if _, ok := a.resolveLocation(v.Preferred, pre); ok && a.definitionReaches(v.Preferred, pre) {
			return a.eval(v.Preferred, pre)
		}
		return a.eval(v.Default, pre)
	default:
		return Top(t.Size())
	}
}

// definitionReaches reports whether some definition reaches t's resolved
// location in pre, used by Choice evaluation.
func (a *Analyzer) definitionReaches(t ir.Term, pre *ReachingDefs) bool {
	loc, ok := a.resolveLocation(t, pre)
	if !ok {
		return false
	}
	return pre.HasAny(loc)
}

// valueAt returns the meet of the abstract values of every term currently
// defining loc, or Top if none do.
func (a *Analyzer) valueAt(loc ir.MemoryLocation, pre *ReachingDefs) AbstractValue {
	defs := pre.Project(loc)
	if len(defs) == 0 {
		return Top(loc.BitSize)
	}
	result := Top(loc.BitSize)
	first := true
	for _, d := range defs {
		v, ok := a.result.Values[d]
		if !ok {
			v = Top(loc.BitSize)
		}
		if first {
			result = v
			first = false
			continue
		}
		result = result.Meet(v)
	}
	return result
}

func (a *Analyzer) evalUnary(u *ir.UnaryOp, pre *ReachingDefs) AbstractValue {
	arg := a.eval(u.Arg, pre)
	switch u.Op {
	case ir.UnaryNot:
		if c, ok := arg.ConcreteValue(); ok {
			mask := mask64(u.Size())
			return FromConstant(^c&mask, u.Size())
		}
	case ir.UnaryNegate:
		if c, ok := arg.ConcreteValue(); ok {
			mask := mask64(u.Size())
			return FromConstant((^c+1)&mask, u.Size())
		}
	case ir.UnarySignExtend, ir.UnaryZeroExtend:
		if c, ok := arg.ConcreteValue(); ok {
			if u.Op == ir.UnarySignExtend && signBit(c, arg.Size()) {
				return FromConstant(signExtend(c, arg.Size(), u.Size()), u.Size())
			}
			return FromConstant(c, u.Size())
		}
		if arg.StackOffset != nil {
			return StackOffsetValue(*arg.StackOffset, u.Size())
		}
	case ir.UnaryTruncate:
		if c, ok := arg.ConcreteValue(); ok {
			return FromConstant(c&mask64(u.Size()), u.Size())
		}
	}
	return Top(u.Size())
}

func (a *Analyzer) evalBinary(b *ir.BinaryOp, pre *ReachingDefs) AbstractValue {
	lhs := a.eval(b.LHS, pre)
	rhs := a.eval(b.RHS, pre)

	// Stack-relative arithmetic: sp +/- concrete constant tracks a new
	// stack offset even though the bit pattern itself stays unknown.
	if b.Op == ir.BinaryAdd || b.Op == ir.BinarySub {
		if lhs.StackOffset != nil {
			if c, ok := rhs.ConcreteValue(); ok {
				delta := int64(c)
				if b.Op == ir.BinarySub {
					delta = -delta
				}
				return StackOffsetValue(*lhs.StackOffset+delta, b.Size())
			}
		}
		if b.Op == ir.BinaryAdd && rhs.StackOffset != nil {
			if c, ok := lhs.ConcreteValue(); ok {
				return StackOffsetValue(*rhs.StackOffset+int64(c), b.Size())
			}
		}
	}

	lc, lok := lhs.ConcreteValue()
	rc, rok := rhs.ConcreteValue()
	if !lok || !rok {
		return Top(b.Size())
	}
	mask := mask64(b.LHS.Size())
	switch b.Op {
	case ir.BinaryAnd:
		return FromConstant(lc&rc, b.Size())
	case ir.BinaryOr:
		return FromConstant(lc|rc, b.Size())
	case ir.BinaryXor:
		return FromConstant(lc^rc, b.Size())
	case ir.BinaryShl:
		return FromConstant((lc<<rc)&mask, b.Size())
	case ir.BinaryShr:
		return FromConstant(lc>>rc, b.Size())
	case ir.BinarySar:
		signed := toSigned(lc, b.LHS.Size())
		return FromConstant(uint64(signed>>rc)&mask, b.Size())
	case ir.BinaryAdd:
		return FromConstant((lc+rc)&mask, b.Size())
	case ir.BinarySub:
		return FromConstant((lc-rc)&mask, b.Size())
	case ir.BinaryMul:
		return FromConstant((lc*rc)&mask, b.Size())
	case ir.BinaryUDiv:
		if rc == 0 {
			return Top(b.Size())
		}
		return FromConstant(lc/rc, b.Size())
	case ir.BinarySDiv:
		if rc == 0 {
			return Top(b.Size())
		}
		return FromConstant(uint64(toSigned(lc, b.LHS.Size())/toSigned(rc, b.LHS.Size()))&mask, b.Size())
	case ir.BinaryURem:
		if rc == 0 {
			return Top(b.Size())
		}
		return FromConstant(lc%rc, b.Size())
	case ir.BinarySRem:
		if rc == 0 {
			return Top(b.Size())
		}
		return FromConstant(uint64(toSigned(lc, b.LHS.Size())%toSigned(rc, b.LHS.Size()))&mask, b.Size())
	case ir.BinaryEq:
		return boolValue(lc == rc)
	case ir.BinaryNe:
		return boolValue(lc != rc)
	case ir.BinaryULt:
		return boolValue(lc < rc)
	case ir.BinaryULe:
		return boolValue(lc <= rc)
	case ir.BinaryUGt:
		return boolValue(lc > rc)
	case ir.BinaryUGe:
		return boolValue(lc >= rc)
	case ir.BinarySLt:
		return boolValue(toSigned(lc, b.LHS.Size()) < toSigned(rc, b.LHS.Size()))
	case ir.BinarySLe:
		return boolValue(toSigned(lc, b.LHS.Size()) <= toSigned(rc, b.LHS.Size()))
	case ir.BinarySGt:
		return boolValue(toSigned(lc, b.LHS.Size()) > toSigned(rc, b.LHS.Size()))
	case ir.BinarySGe:
		return boolValue(toSigned(lc, b.LHS.Size()) >= toSigned(rc, b.LHS.Size()))
	default:
		return Top(b.Size())
	}
}

func boolValue(b bool) AbstractValue {
	if b {
		return FromConstant(1, 1)
	}
	return FromConstant(0, 1)
}

func mask64(size bin.BitSize) uint64 {
	if size >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(size)) - 1
}

func signBit(v uint64, size bin.BitSize) bool {
	if size == 0 {
		return false
	}
	return v&(1<<uint(size-1)) != 0
}

func signExtend(v uint64, from, to bin.BitSize) uint64 {
	if !signBit(v, from) {
		return v & mask64(to)
	}
	return (v | ^mask64(from)) & mask64(to)
}

func toSigned(v uint64, size bin.BitSize) int64 {
	if signBit(v, size) {
		return int64(v | ^mask64(size))
	}
	return int64(v)
}
