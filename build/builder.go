// Package build implements the program builder (spec.md §4.2): it
// incrementally assembles a program from a stream of lifted per-instruction
// IR fragments, yielded by the external disassembler in arbitrary address
// order.
package build

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"github.com/pkg/errors"
)

var (
	dbg  = log.New(os.Stderr, term.MagentaBold("build:")+" ", 0)
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// Builder incrementally assembles a Program from lifted instructions.
type Builder struct {
	Program *ir.Program
}

// NewBuilder returns a builder writing into prog.
func NewBuilder(prog *ir.Program) *Builder {
	return &Builder{Program: prog}
}

// AddCalledAddress records addr as a call-target address; the orchestrator
// supplies these up front so get_block_for_instruction can coordinate
// splits at call targets (spec.md §4.2).
func (b *Builder) AddCalledAddress(addr bin.Addr) {
	b.Program.AddCalledAddress(addr)
}

// GetBlockForInstruction returns the block an instruction spanning
// [instrAddr, endAddr) should append its statements to, creating or
// splitting blocks as needed, then refreshes the chosen block's successor
// address and re-indexes it.
func (b *Builder) GetBlockForInstruction(instrAddr, endAddr bin.Addr) (*ir.BasicBlock, error) {
	var block *ir.BasicBlock
	if existing, ok := b.Program.BlockAt(instrAddr); ok {
		block = existing
	} else if instrAddr > 0 {
		// Only the block this instruction directly continues (its current
		// end is exactly instrAddr) is safe to extend in place; a covering
		// block whose end lies further out means instrAddr lands strictly
		// inside already-lifted bytes, which CreateBlock below must split
		// instead.
		if covering, ok := b.Program.LookupCovering(instrAddr - 1); ok {
			if covering.SuccessorAddr != nil && *covering.SuccessorAddr == instrAddr {
				block = covering
			}
		}
	}
	if block == nil {
		var err error
		block, err = b.CreateBlock(instrAddr)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	addr := endAddr
	block.SuccessorAddr = &addr
	b.Program.Reindex(block)
	return block, nil
}

// CreateBlock returns the block starting at address, creating it if
// necessary. If address lies strictly inside an existing memory-bound
// block, that block is split at the first statement whose instruction
// address is >= address, both halves are re-indexed, and the suffix is
// returned.
func (b *Builder) CreateBlock(address bin.Addr) (*ir.BasicBlock, error) {
	if existing, ok := b.Program.BlockAt(address); ok {
		return existing, nil
	}
	if covering, ok := b.Program.LookupCovering(address); ok {
		return b.splitAt(covering, address)
	}
	block := ir.NewBasicBlock(address)
	b.Program.AddBlock(block)
	return block, nil
}

// splitAt splits block at the first statement whose originating
// instruction address is >= address.
func (b *Builder) splitAt(block *ir.BasicBlock, address bin.Addr) (*ir.BasicBlock, error) {
	var splitPoint ir.Statement
	for _, s := range block.Statements() {
		addr, ok := s.InstructionAddr()
		if ok && addr >= address {
			splitPoint = s
			break
		}
	}
	if splitPoint == nil {
		return nil, errors.Errorf("build: unable to locate split point at address %v in block %v", address, block)
	}
	dbg.Printf("splitting block at %v (requested address %v)", block.EntryAddr, address)
	suffix := block.SplitAt(splitPoint)
	b.Program.Reindex(block)
	b.Program.AddBlock(suffix)
	return suffix, nil
}
