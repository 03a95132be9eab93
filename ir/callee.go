package ir

import (
	"fmt"

	"github.com/mewmew/nc/bin"
)

// CalleeKind discriminates the ways a callable may be identified when its
// body may not exist (an unresolved indirect call, for instance).
type CalleeKind int

const (
	// CalleeInvalid is the zero value: no identity.
	CalleeInvalid CalleeKind = iota
	// CalleeEntryAddress identifies a callable by its function entry
	// address.
	CalleeEntryAddress
	// CalleeCallSiteAddress identifies a callable by the address of an
	// unresolved call site (the callee's body was never located).
	CalleeCallSiteAddress
	// CalleeFunctionPointer identifies a callable reached only through a
	// runtime-computed pointer, with no static address at all.
	CalleeFunctionPointer
	// CalleeSynthetic identifies a function the partitioner produced with no
	// entry address of its own, keyed by a per-run sequence number rather
	// than any address, so distinct address-less functions never collide.
	CalleeSynthetic
)

// CalleeID is a value-typed identifier of a callable, comparable with ==, so
// it can key calling-convention assignments, signatures and hook caches
// without requiring the callee's body to exist (spec.md §3).
type CalleeID struct {
	Kind CalleeKind
	Addr bin.Addr
}

// EntryCalleeID returns a callee id naming the function entered at addr.
func EntryCalleeID(addr bin.Addr) CalleeID {
	return CalleeID{Kind: CalleeEntryAddress, Addr: addr}
}

// CallSiteCalleeID returns a callee id naming the unresolved call site at
// addr.
func CallSiteCalleeID(addr bin.Addr) CalleeID {
	return CalleeID{Kind: CalleeCallSiteAddress, Addr: addr}
}

// SyntheticCalleeID returns a callee id for a function with no entry
// address, unique within the run via seq.
func SyntheticCalleeID(seq int) CalleeID {
	return CalleeID{Kind: CalleeSynthetic, Addr: bin.Addr(seq)}
}

// IsValid reports whether id names an actual callable.
func (id CalleeID) IsValid() bool { return id.Kind != CalleeInvalid }

func (id CalleeID) String() string {
	switch id.Kind {
	case CalleeEntryAddress:
		return "entry:" + id.Addr.String()
	case CalleeCallSiteAddress:
		return "callsite:" + id.Addr.String()
	case CalleeFunctionPointer:
		return "fnptr"
	case CalleeSynthetic:
		return fmt.Sprintf("synthetic:%d", id.Addr)
	default:
		return "<invalid callee>"
	}
}
