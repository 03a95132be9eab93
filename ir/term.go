package ir

import (
	"fmt"

	"github.com/mewmew/nc/bin"
)

// AccessRole records how a term is used within its enclosing statement:
// read for its value, written to, or killed (consumed purely to invalidate
// reaching definitions, with no value read).
type AccessRole int

const (
	// RoleRead marks a term whose value is consumed.
	RoleRead AccessRole = iota
	// RoleWrite marks a term that receives a new definition.
	RoleWrite
	// RoleKill marks a term touched solely to invalidate prior definitions
	// of its location.
	RoleKill
)

func (r AccessRole) String() string {
	switch r {
	case RoleRead:
		return "read"
	case RoleWrite:
		return "write"
	case RoleKill:
		return "kill"
	default:
		return "role?"
	}
}

// Term is a pure expression node owned exclusively by its enclosing
// statement. Term subtrees never alias across statements; cloning a
// statement deep-copies every term it owns.
type Term interface {
	// Size returns the bit size of the term's value, matching the declared
	// size of its operator (spec.md §8 invariant).
	Size() bin.BitSize
	// Statement returns the statement this term is owned by, or nil if the
	// term has not yet been attached to one.
	Statement() Statement
	// Role returns how this term is used within its enclosing statement.
	Role() AccessRole
	// VisitChildTerms calls fn on each direct child term, if any.
	VisitChildTerms(fn func(Term))
	// String returns a debug representation.
	String() string

	setStatement(Statement)
	setRole(AccessRole)
}

// termBase is embedded by every concrete term and implements the bookkeeping
// shared by all terms: size, enclosing statement, access role.
type termBase struct {
	size bin.BitSize
	stmt Statement
	role AccessRole
}

func (t *termBase) Size() bin.BitSize { return t.size }
func (t *termBase) Statement() Statement { return t.stmt }
func (t *termBase) Role() AccessRole      { return t.role }

// setStatement sets the enclosing statement. Attaching an already-attached
// term to a different statement is an internal consistency violation
// (spec.md §7) and panics; re-attaching it to the same statement is a no-op.
func (t *termBase) setStatement(s Statement) {
	if t.stmt != nil && t.stmt != s {
		panic("ir: term already attached to a statement")
	}
	t.stmt = s
}

func (t *termBase) setRole(r AccessRole) { t.role = r }

// IntrinsicKind enumerates the opaque, architecture-agnostic values an
// Intrinsic term may carry.
type IntrinsicKind int

const (
	// IntrinsicUnknown stands for a value the lifter could not characterize
	// (e.g. the result of an unsupported instruction form).
	IntrinsicUnknown IntrinsicKind = iota
	// IntrinsicUndefined marks a value with no defined semantics (e.g. an
	// argument location right after a call hook's speculative write).
	IntrinsicUndefined
	// IntrinsicReturnAddress stands for the return address pushed by a
	// call instruction.
	IntrinsicReturnAddress
	// IntrinsicZeroStackOffset marks the value assigned to the stack
	// pointer by an entry hook: "this is offset zero of the frame".
	IntrinsicZeroStackOffset
)

func (k IntrinsicKind) String() string {
	switch k {
	case IntrinsicUnknown:
		return "unknown"
	case IntrinsicUndefined:
		return "undef"
	case IntrinsicReturnAddress:
		return "retaddr"
	case IntrinsicZeroStackOffset:
		return "zero_stack_offset"
	default:
		return "intrinsic?"
	}
}

// Constant is a sized integer constant.
type Constant struct {
	termBase
	Value uint64
}

// NewConstant returns a constant term of the given value and bit size.
func NewConstant(value uint64, size bin.BitSize) *Constant {
	return &Constant{termBase: termBase{size: size}, Value: value}
}

func (c *Constant) VisitChildTerms(fn func(Term)) {}
func (c *Constant) String() string                { return fmt.Sprintf("0x%X:%d", c.Value, c.size) }

// Intrinsic is an opaque, kinded value with no further structure.
type Intrinsic struct {
	termBase
	Kind IntrinsicKind
}

// NewIntrinsic returns an intrinsic term of the given kind and bit size.
func NewIntrinsic(kind IntrinsicKind, size bin.BitSize) *Intrinsic {
	return &Intrinsic{termBase: termBase{size: size}, Kind: kind}
}

func (i *Intrinsic) VisitChildTerms(fn func(Term)) {}
func (i *Intrinsic) String() string                { return i.Kind.String() }

// LocationAccess reads or writes a named memory location directly (as
// opposed to Dereference, which computes an address at runtime).
type LocationAccess struct {
	termBase
	Location MemoryLocation
}

// NewLocationAccess returns a term naming loc directly.
func NewLocationAccess(loc MemoryLocation) *LocationAccess {
	return &LocationAccess{termBase: termBase{size: loc.BitSize}, Location: loc}
}

func (a *LocationAccess) VisitChildTerms(fn func(Term)) {}
func (a *LocationAccess) String() string                { return a.Location.String() }

// Dereference reads or writes the memory addressed by Address, in the given
// pointee domain, at the given width.
type Dereference struct {
	termBase
	Address       Term
	PointeeDomain Domain
}

// NewDereference returns a dereference of address, reading/writing size
// bits in pointeeDomain.
func NewDereference(address Term, pointeeDomain Domain, size bin.BitSize) *Dereference {
	d := &Dereference{termBase: termBase{size: size}, Address: address, PointeeDomain: pointeeDomain}
	return d
}

func (d *Dereference) VisitChildTerms(fn func(Term)) { fn(d.Address) }
func (d *Dereference) String() string                { return fmt.Sprintf("*(%v)", d.Address) }

// UnaryOp applies a unary operator to Arg.
type UnaryOpKind int

const (
	UnaryNot UnaryOpKind = iota
	UnaryNegate
	UnarySignExtend
	UnaryZeroExtend
	UnaryTruncate
)

func (k UnaryOpKind) String() string {
	switch k {
	case UnaryNot:
		return "not"
	case UnaryNegate:
		return "neg"
	case UnarySignExtend:
		return "sext"
	case UnaryZeroExtend:
		return "zext"
	case UnaryTruncate:
		return "trunc"
	default:
		return "unop?"
	}
}

type UnaryOp struct {
	termBase
	Op  UnaryOpKind
	Arg Term
}

// NewUnaryOp returns a unary operator term.
func NewUnaryOp(op UnaryOpKind, arg Term, size bin.BitSize) *UnaryOp {
	return &UnaryOp{termBase: termBase{size: size}, Op: op, Arg: arg}
}

func (u *UnaryOp) VisitChildTerms(fn func(Term)) { fn(u.Arg) }
func (u *UnaryOp) String() string                { return fmt.Sprintf("%v(%v)", u.Op, u.Arg) }

// BinaryOpKind enumerates the bitwise, arithmetic, shift and compare
// operators terms may carry. Compare operators always yield a 1-bit result.
type BinaryOpKind int

const (
	BinaryAnd BinaryOpKind = iota
	BinaryOr
	BinaryXor
	BinaryShl
	BinaryShr // logical (unsigned) right shift
	BinarySar // arithmetic (signed) right shift
	BinaryAdd
	BinarySub
	BinaryMul
	BinaryUDiv
	BinarySDiv
	BinaryURem
	BinarySRem
	BinaryEq
	BinaryNe
	BinaryULt
	BinaryULe
	BinaryUGt
	BinaryUGe
	BinarySLt
	BinarySLe
	BinarySGt
	BinarySGe
)

// IsCompare reports whether op yields a 1-bit boolean result.
func (op BinaryOpKind) IsCompare() bool {
	switch op {
	case BinaryEq, BinaryNe, BinaryULt, BinaryULe, BinaryUGt, BinaryUGe, BinarySLt, BinarySLe, BinarySGt, BinarySGe:
		return true
	}
	return false
}

// IsSigned reports whether op treats its operands as signed.
func (op BinaryOpKind) IsSigned() bool {
	switch op {
	case BinarySDiv, BinarySRem, BinarySLt, BinarySLe, BinarySGt, BinarySGe:
		return true
	}
	return false
}

func (op BinaryOpKind) String() string {
	names := map[BinaryOpKind]string{
		BinaryAnd: "and", BinaryOr: "or", BinaryXor: "xor", BinaryShl: "shl",
		BinaryShr: "shr", BinarySar: "sar", BinaryAdd: "add", BinarySub: "sub",
		BinaryMul: "mul", BinaryUDiv: "udiv", BinarySDiv: "sdiv", BinaryURem: "urem",
		BinarySRem: "srem", BinaryEq: "eq", BinaryNe: "ne", BinaryULt: "ult",
		BinaryULe: "ule", BinaryUGt: "ugt", BinaryUGe: "uge", BinarySLt: "slt",
		BinarySLe: "sle", BinarySGt: "sgt", BinarySGe: "sge",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "binop?"
}

// BinaryOp applies a binary operator to LHS and RHS.
type BinaryOp struct {
	termBase
	Op       BinaryOpKind
	LHS, RHS Term
}

// NewBinaryOp returns a binary operator term. size must be 1 for compare
// operators, matching spec.md §8's invariant.
func NewBinaryOp(op BinaryOpKind, lhs, rhs Term, size bin.BitSize) *BinaryOp {
	if op.IsCompare() && size != 1 {
		panic("ir: compare operator must have bit size 1")
	}
	return &BinaryOp{termBase: termBase{size: size}, Op: op, LHS: lhs, RHS: rhs}
}

func (b *BinaryOp) VisitChildTerms(fn func(Term)) { fn(b.LHS); fn(b.RHS) }
func (b *BinaryOp) String() string                { return fmt.Sprintf("(%v %v %v)", b.LHS, b.Op, b.RHS) }

// Choice emits Preferred if some definition reaches it, else Default.
// Preferred and Default must share the same bit size.
type Choice struct {
	termBase
	Preferred, Default Term
}

// NewChoice returns a choice term between preferred and def, which must
// share a bit size.
func NewChoice(preferred, def Term, size bin.BitSize) *Choice {
	return &Choice{termBase: termBase{size: size}, Preferred: preferred, Default: def}
}

func (c *Choice) VisitChildTerms(fn func(Term)) { fn(c.Preferred); fn(c.Default) }
func (c *Choice) String() string                { return fmt.Sprintf("choice(%v, %v)", c.Preferred, c.Default) }

// attachChildren walks t's immediate children, assigning them to stmt and
// recursing, matching spec.md §4.1's "set once, recursively" rule for the
// enclosing-statement back-pointer.
func attachChildren(t Term, stmt Statement, role AccessRole) {
	t.setStatement(stmt)
	t.setRole(role)
	t.VisitChildTerms(func(child Term) {
		attachChildren(child, stmt, RoleRead)
	})
}

// CloneTerm deep-copies t and every term it owns. The clone is not yet
// attached to any statement.
func CloneTerm(t Term) Term {
	switch v := t.(type) {
	case *Constant:
		c := *v
		c.stmt = nil
		return &c
	case *Intrinsic:
		c := *v
		c.stmt = nil
		return &c
	case *LocationAccess:
		c := *v
		c.stmt = nil
		return &c
	case *Dereference:
		c := *v
		c.stmt = nil
		c.Address = CloneTerm(v.Address)
		return &c
	case *UnaryOp:
		c := *v
		c.stmt = nil
		c.Arg = CloneTerm(v.Arg)
		return &c
	case *BinaryOp:
		c := *v
		c.stmt = nil
		c.LHS = CloneTerm(v.LHS)
		c.RHS = CloneTerm(v.RHS)
		return &c
	case *Choice:
		c := *v
		c.stmt = nil
		c.Preferred = CloneTerm(v.Preferred)
		c.Default = CloneTerm(v.Default)
		return &c
	default:
		panic(fmt.Sprintf("ir: unsupported term type %T in CloneTerm", t))
	}
}
