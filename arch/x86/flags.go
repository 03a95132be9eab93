package x86

import (
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"golang.org/x/arch/x86/x86asm"
)

// binaryOpOf maps an arithmetic/logical x86asm opcode to its IR operator.
func binaryOpOf(op x86asm.Op) ir.BinaryOpKind {
	switch op {
	case x86asm.ADD:
		return ir.BinaryAdd
	case x86asm.SUB:
		return ir.BinarySub
	case x86asm.AND:
		return ir.BinaryAnd
	case x86asm.OR:
		return ir.BinaryOr
	case x86asm.XOR:
		return ir.BinaryXor
	default:
		return ir.BinaryAdd
	}
}

// zeroFlag builds a "result == 0" term.
func zeroFlag(result ir.Term, size bin.BitSize) ir.Term {
	return ir.NewBinaryOp(ir.BinaryEq, result, ir.NewConstant(0, size), 1)
}

// signFlag builds a "top bit of result" term.
func signFlag(result ir.Term, size bin.BitSize) ir.Term {
	shr := ir.NewBinaryOp(ir.BinaryShr, result, ir.NewConstant(uint64(size-1), size), size)
	return ir.NewUnaryOp(ir.UnaryTruncate, shr, 1)
}

// killUnmodeled invalidates the flags this package does not compute exact
// formulas for: CF/AF/PF/OF depend on the specific opcode (borrow, nibble
// carry, bit parity, signed overflow) and are never consumed by this
// module's dataflow, signature or type layers, so rather than grow a
// formula per opcode speculatively they are marked as redefined-but-unknown.
func killUnmodeled(emit func(ir.Statement)) {
	for _, flag := range []ir.MemoryLocation{CF, AF, PF, OF} {
		emit(ir.NewTouch(ir.NewLocationAccess(flag), ir.RoleKill))
	}
}

// emitFlags writes ZF and SF from the post-write value of an arithmetic
// destination, read back via buildPost (called twice: each call's term may
// only be attached to the one statement it appears in).
func emitFlags(emit func(ir.Statement), buildPost func() (ir.Term, error), size bin.BitSize) error {
	zeroPost, err := buildPost()
	if err != nil {
		return err
	}
	emit(ir.NewAssignment(ir.NewLocationAccess(ZF), zeroFlag(zeroPost, size)))

	signPost, err := buildPost()
	if err != nil {
		return err
	}
	emit(ir.NewAssignment(ir.NewLocationAccess(SF), signFlag(signPost, size)))

	killUnmodeled(emit)
	return nil
}

// emitCompareFlags writes ZF/SF from a comparison result built once per
// flag (buildResult is called twice since each call's term may only be
// attached to the one statement it appears in).
func emitCompareFlags(emit func(ir.Statement), buildResult func() (ir.Term, error), size bin.BitSize) error {
	zeroResult, err := buildResult()
	if err != nil {
		return err
	}
	emit(ir.NewAssignment(ir.NewLocationAccess(ZF), zeroFlag(zeroResult, size)))

	signResult, err := buildResult()
	if err != nil {
		return err
	}
	emit(ir.NewAssignment(ir.NewLocationAccess(SF), signFlag(signResult, size)))

	killUnmodeled(emit)
	return nil
}
