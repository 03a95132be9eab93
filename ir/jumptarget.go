package ir

import (
	"fmt"
	"strings"

	"github.com/mewmew/nc/bin"
)

// JumpTargetKind discriminates the three ways a jump may name its
// destination.
type JumpTargetKind int

const (
	// TargetNone is the zero value: no destination (used for the unused
	// Else side of an unconditional jump).
	TargetNone JumpTargetKind = iota
	// TargetAddress computes the destination address at runtime from a
	// term (an indirect jump through a register or memory).
	TargetAddress
	// TargetBlock points directly at a block in the same program.
	TargetBlock
	// TargetTable dispatches through a jump table: a vector of
	// (address, optional resolved block) pairs.
	TargetTable
)

// JumpTableEntry is one case of a jump table: the raw destination address
// and, once resolved against the program's block index, the block it lands
// in.
type JumpTableEntry struct {
	Address bin.Addr
	Block   *BasicBlock
}

// JumpTarget is a disjoint union of the three ways a Jump statement may name
// its destination (spec.md §3).
type JumpTarget struct {
	Kind    JumpTargetKind
	Address Term // valid iff Kind == TargetAddress
	Block   *BasicBlock // valid iff Kind == TargetBlock
	Table   []JumpTableEntry // valid iff Kind == TargetTable
}

// AddressTarget returns a jump target that computes its destination from
// addr at runtime.
func AddressTarget(addr Term) JumpTarget {
	return JumpTarget{Kind: TargetAddress, Address: addr}
}

// BlockTarget returns a jump target pointing directly at block.
func BlockTarget(block *BasicBlock) JumpTarget {
	return JumpTarget{Kind: TargetBlock, Block: block}
}

// TableTarget returns a jump target dispatching through a jump table.
func TableTarget(entries []JumpTableEntry) JumpTarget {
	return JumpTarget{Kind: TargetTable, Table: entries}
}

func (jt JumpTarget) visitTerms(fn func(Term)) {
	if jt.Kind == TargetAddress && jt.Address != nil {
		fn(jt.Address)
	}
}

func (jt JumpTarget) String() string {
	switch jt.Kind {
	case TargetNone:
		return "<none>"
	case TargetAddress:
		return fmt.Sprintf("*%v", jt.Address)
	case TargetBlock:
		if jt.Block != nil && jt.Block.EntryAddr != nil {
			return fmt.Sprintf("block_%v", *jt.Block.EntryAddr)
		}
		return "block_<synthetic>"
	case TargetTable:
		var addrs []string
		for _, e := range jt.Table {
			addrs = append(addrs, e.Address.String())
		}
		return "table[" + strings.Join(addrs, ", ") + "]"
	default:
		return "target?"
	}
}
