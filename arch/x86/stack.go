package x86

import (
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

// spLoc returns the stack pointer location at the processor's native
// address width (esp in 32-bit mode, rsp in 64-bit mode).
func spLoc(addrSize bin.BitSize) ir.MemoryLocation {
	return famLoc(famSP, addrSize)
}

// decSP emits "sp -= operandSize/8" (the operand's width in bytes), the
// first half of push.
func decSP(operandSize, addrSize bin.BitSize) ir.Statement {
	loc := spLoc(addrSize)
	delta := uint64(operandSize) / 8
	return ir.NewAssignment(ir.NewLocationAccess(loc), ir.NewBinaryOp(ir.BinarySub, ir.NewLocationAccess(loc), ir.NewConstant(delta, addrSize), addrSize))
}

// incSP emits "sp += operandSize/8" (the operand's width in bytes), the
// second half of pop and ret.
func incSP(operandSize, addrSize bin.BitSize) ir.Statement {
	loc := spLoc(addrSize)
	delta := uint64(operandSize) / 8
	return ir.NewAssignment(ir.NewLocationAccess(loc), ir.NewBinaryOp(ir.BinaryAdd, ir.NewLocationAccess(loc), ir.NewConstant(delta, addrSize), addrSize))
}

// derefSP returns a term reading/writing the size bits at [sp].
func derefSP(size, addrSize bin.BitSize) ir.Term {
	return ir.NewDereference(ir.NewLocationAccess(spLoc(addrSize)), ir.DomainMemory, size)
}
