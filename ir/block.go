package ir

import (
	"bytes"
	"fmt"

	"github.com/mewmew/nc/bin"
)

// BasicBlock holds an ordered list of statements, an optional entry address
// (nil for a synthetic block created by an analysis rather than lifted from
// an instruction stream), an optional successor address (the byte following
// the last included instruction; used by the program builder to splice
// adjacent blocks) and a back-pointer to the enclosing function.
//
// Statements live in an intrusive doubly linked list; Clone deep-copies
// them.
type BasicBlock struct {
	// EntryAddr is the address the block starts at, or nil if synthetic.
	EntryAddr *bin.Addr
	// SuccessorAddr is the address immediately following the block's last
	// lifted instruction, or nil if the block is not memory-bound.
	SuccessorAddr *bin.Addr

	fn         *Function
	head, tail Statement
	length     int
}

// NewBasicBlock returns an empty block starting at addr.
func NewBasicBlock(addr bin.Addr) *BasicBlock {
	a := addr
	return &BasicBlock{EntryAddr: &a}
}

// NewSyntheticBlock returns an empty block with no declared address, as
// created by an analysis pass rather than lifted from instructions.
func NewSyntheticBlock() *BasicBlock {
	return &BasicBlock{}
}

// Function returns the function this block belongs to, or nil.
func (b *BasicBlock) Function() *Function { return b.fn }

// Len returns the number of statements in the block.
func (b *BasicBlock) Len() int { return b.length }

// IsMemoryBound reports whether the block has a known entry and successor
// address, i.e. whether it should appear in the program's range index.
func (b *BasicBlock) IsMemoryBound() bool {
	return b.EntryAddr != nil && b.SuccessorAddr != nil
}

// Terminated reports whether the block's last statement is a jump or halt,
// per spec.md §4.1's block state machine.
func (b *BasicBlock) Terminated() bool {
	switch b.tail.(type) {
	case *Jump, *Halt:
		return true
	default:
		return false
	}
}

// Statements returns the block's statements in order. The returned slice is
// a snapshot; mutating the block afterwards does not affect it.
func (b *BasicBlock) Statements() []Statement {
	stmts := make([]Statement, 0, b.length)
	for s := b.head; s != nil; s = s.nextStmt() {
		stmts = append(stmts, s)
	}
	return stmts
}

// First returns the block's first statement, or nil if empty.
func (b *BasicBlock) First() Statement { return b.head }

// Last returns the block's last statement, or nil if empty.
func (b *BasicBlock) Last() Statement { return b.tail }

// PushFront prepends s to the block.
func (b *BasicBlock) PushFront(s Statement) {
	s.setBlock(b)
	s.setNextStmt(b.head)
	s.setPrevStmt(nil)
	if b.head != nil {
		b.head.setPrevStmt(s)
	} else {
		b.tail = s
	}
	b.head = s
	b.length++
}

// PushBack appends s to the block. Pushing to an already-terminated block is
// an internal consistency violation and panics (spec.md §4.1).
func (b *BasicBlock) PushBack(s Statement) {
	if b.Terminated() {
		panic("ir: push-back onto a terminated block")
	}
	s.setBlock(b)
	s.setPrevStmt(b.tail)
	s.setNextStmt(nil)
	if b.tail != nil {
		b.tail.setNextStmt(s)
	} else {
		b.head = s
	}
	b.tail = s
	b.length++
}

// InsertBefore inserts s immediately before anchor, which must belong to b.
func (b *BasicBlock) InsertBefore(anchor, s Statement) {
	if anchor.Block() != b {
		panic("ir: InsertBefore anchor does not belong to this block")
	}
	prev := anchor.prevStmt()
	s.setBlock(b)
	s.setPrevStmt(prev)
	s.setNextStmt(anchor)
	if prev != nil {
		prev.setNextStmt(s)
	} else {
		b.head = s
	}
	anchor.setPrevStmt(s)
	b.length++
}

// InsertAfter inserts s immediately after anchor, which must belong to b.
func (b *BasicBlock) InsertAfter(anchor, s Statement) {
	if anchor.Block() != b {
		panic("ir: InsertAfter anchor does not belong to this block")
	}
	next := anchor.nextStmt()
	s.setBlock(b)
	s.setPrevStmt(anchor)
	s.setNextStmt(next)
	if next != nil {
		next.setPrevStmt(s)
	} else {
		b.tail = s
	}
	anchor.setNextStmt(s)
	b.length++
}

// Erase removes s from the block, which must belong to b.
func (b *BasicBlock) Erase(s Statement) {
	if s.Block() != b {
		panic("ir: Erase: statement does not belong to this block")
	}
	prev, next := s.prevStmt(), s.nextStmt()
	if prev != nil {
		prev.setNextStmt(next)
	} else {
		b.head = next
	}
	if next != nil {
		next.setPrevStmt(prev)
	} else {
		b.tail = prev
	}
	s.setBlock(nil)
	s.setPrevStmt(nil)
	s.setNextStmt(nil)
	b.length--
}

// SplitAt creates a new block holding the suffix of b starting at (and
// including) at, which must belong to b. The terminator relationship is
// preserved: if b was terminated, the new block inherits the terminator and
// b becomes non-terminated (a caller is expected to push a fallthrough jump
// onto b to re-terminate it).
func (b *BasicBlock) SplitAt(at Statement) *BasicBlock {
	if at.Block() != b {
		panic("ir: SplitAt: statement does not belong to this block")
	}
	suffix := NewSyntheticBlock()
	if b.EntryAddr != nil {
		if addr, ok := at.InstructionAddr(); ok {
			suffix.EntryAddr = &addr
		}
	}
	suffix.SuccessorAddr = b.SuccessorAddr
	b.SuccessorAddr = nil
	if addr, ok := at.InstructionAddr(); ok {
		b.SuccessorAddr = &addr
	}

	prev := at.prevStmt()
	if prev != nil {
		prev.setNextStmt(nil)
	} else {
		b.head = nil
	}
	b.tail = prev

	n := 0
	for s := at; s != nil; {
		next := s.nextStmt()
		s.setBlock(suffix)
		s.setPrevStmt(nil)
		if suffix.tail != nil {
			suffix.tail.setNextStmt(s)
			s.setPrevStmt(suffix.tail)
		} else {
			suffix.head = s
		}
		s.setNextStmt(nil)
		suffix.tail = s
		n++
		s = next
	}
	suffix.length = n
	b.length -= n
	suffix.fn = b.fn
	return suffix
}

// Clone deep-copies the block's statements (and the terms they own). It does
// not copy EntryAddr/SuccessorAddr (callers assign fresh addressing as
// needed) nor block/function back-pointers of the statements' jump targets;
// those are rewritten by the caller via a source→clone block map (see
// package partition).
func (b *BasicBlock) Clone() *BasicBlock {
	c := NewSyntheticBlock()
	for s := b.head; s != nil; s = s.nextStmt() {
		c.PushBack(s.Clone())
	}
	return c
}

// RewriteJumpTargets rewrites every TargetBlock jump target in b through
// clones, a map from original block to its clone. A target whose block is
// not present in clones (an unconditional jump leaving the cloned region)
// is dropped, turning the jump into dead code per spec.md §4.3; the caller
// is expected to then erase such a now-terminator-less jump or replace it
// with a halt.
func (b *BasicBlock) RewriteJumpTargets(clones map[*BasicBlock]*BasicBlock) {
	for _, s := range b.Statements() {
		j, ok := s.(*Jump)
		if !ok {
			continue
		}
		j.Then = rewriteTarget(j.Then, clones)
		if j.IsConditional() {
			j.Else = rewriteTarget(j.Else, clones)
		}
	}
}

func rewriteTarget(t JumpTarget, clones map[*BasicBlock]*BasicBlock) JumpTarget {
	switch t.Kind {
	case TargetBlock:
		if c, ok := clones[t.Block]; ok {
			t.Block = c
		} else {
			t.Block = nil
		}
	case TargetTable:
		entries := make([]JumpTableEntry, len(t.Table))
		for i, e := range t.Table {
			if c, ok := clones[e.Block]; ok {
				e.Block = c
			} else {
				e.Block = nil
			}
			entries[i] = e
		}
		t.Table = entries
	}
	return t
}

// String returns a debug representation of the block.
func (b *BasicBlock) String() string {
	buf := &bytes.Buffer{}
	if b.EntryAddr != nil {
		fmt.Fprintf(buf, "block_%v:\n", *b.EntryAddr)
	} else {
		fmt.Fprintf(buf, "block_<synthetic>:\n")
	}
	for i, s := range b.Statements() {
		if i != 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(buf, "\t%v", s)
	}
	return buf.String()
}
