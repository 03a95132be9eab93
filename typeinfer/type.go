// Package typeinfer implements unification-based type inference (spec.md
// §4.9): every term gets a type variable carrying bit-size, signedness,
// pointer-ness and an offset-to-type map, unioned together as constraints
// are walked out of the IR.
package typeinfer

import (
	"fmt"

	"github.com/mewmew/nc/bin"
)

// Signedness is a three-valued lattice: unknown, or forced signed/unsigned
// by some comparison or extend operator that touched the type variable.
type Signedness int

const (
	SignUnknown Signedness = iota
	Signed
	Unsigned
)

// merge combines two signedness facts. A known value wins over unknown; two
// conflicting known values fall back to unknown rather than picking one
// arbitrarily, since neither observation is more authoritative than the
// other.
func (s Signedness) merge(o Signedness) Signedness {
	switch {
	case s == SignUnknown:
		return o
	case o == SignUnknown:
		return s
	case s == o:
		return s
	default:
		return SignUnknown
	}
}

func (s Signedness) String() string {
	switch s {
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	default:
		return "unknown"
	}
}

// Type is the lattice of facts accumulated for one type variable's
// equivalence class.
type Type struct {
	BitSize bin.BitSize
	Sign    Signedness
	Float   bool

	// Pointer and Pointee describe a pointer type: Pointee is the type
	// variable of the value it addresses.
	Pointer bool
	Pointee *node

	// Offsets maps a byte offset reached by pointer arithmetic from this
	// type's representative to the type variable recovered at that offset
	// (spec.md §4.9: "its offset map enables later struct recovery").
	Offsets map[int64]*node
}

func (t *Type) String() string {
	kind := "int"
	switch {
	case t.Float:
		kind = "float"
	case t.Pointer:
		kind = "ptr"
	}
	return fmt.Sprintf("%s%d/%s", kind, t.BitSize, t.Sign)
}

// node is one union-find entry keyed by the term that first referenced it.
type node struct {
	parent *node
	t      *Type
}

func newNode(size bin.BitSize) *node {
	n := &node{t: &Type{BitSize: size}}
	n.parent = n
	return n
}

// find returns n's representative, applying path halving as it walks.
func (n *node) find() *node {
	for n.parent != n {
		n.parent.parent = n.parent.parent.parent
		n = n.parent
	}
	return n
}

// mergeTypes folds b's facts into a, keeping a's offset/pointee entries
// where b has none and vice versa.
func mergeTypes(a, b *Type) *Type {
	out := &Type{
		BitSize: a.BitSize,
		Sign:    a.Sign.merge(b.Sign),
		Float:   a.Float || b.Float,
		Pointer: a.Pointer || b.Pointer,
		Pointee: a.Pointee,
	}
	if out.BitSize == 0 {
		out.BitSize = b.BitSize
	}
	if out.Pointee == nil {
		out.Pointee = b.Pointee
	}
	if len(a.Offsets) > 0 || len(b.Offsets) > 0 {
		out.Offsets = make(map[int64]*node, len(a.Offsets)+len(b.Offsets))
		for k, v := range a.Offsets {
			out.Offsets[k] = v
		}
		for k, v := range b.Offsets {
			if _, ok := out.Offsets[k]; !ok {
				out.Offsets[k] = v
			}
		}
	}
	return out
}

// unify merges x and y's equivalence classes. Unifying a node with itself
// (directly, or because two different terms already collapsed to the same
// representative) is a no-op instead of re-splicing the union-find parent
// pointer into a cycle.
func unify(x, y *node) *node {
	if x == nil {
		return y
	}
	if y == nil {
		return x
	}
	rx, ry := x.find(), y.find()
	if rx == ry {
		return rx
	}
	rx.t = mergeTypes(rx.t, ry.t)
	ry.parent = rx
	ry.t = nil
	return rx
}

// offsetVar returns (creating if absent) the type variable recovered at
// byte offset off from base's representative.
func offsetVar(base *node, off int64) *node {
	root := base.find()
	if root.t.Offsets == nil {
		root.t.Offsets = make(map[int64]*node)
	}
	n, ok := root.t.Offsets[off]
	if !ok {
		n = newNode(0)
		root.t.Offsets[off] = n
	}
	return n
}
